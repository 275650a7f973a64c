package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/i2y/oaicompat/llm"
	"github.com/i2y/oaicompat/metrics"
	"github.com/i2y/oaicompat/openai"
)

type chatOptions struct {
	prompt  string
	model   string
	system  string
	usage   bool
	lenient bool
}

func newChatCmd(flags *globalFlags) *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Stream a reply to a prompt",
		Example: `  oaicompat chat --prompt "Write a haiku about Go"
  OPENAI_BASE_URL=http://localhost:11434/v1 oaicompat chat -p "Hi" --model llama3.1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, flags, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "user prompt (required)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model name (default: endpoint default)")
	cmd.Flags().StringVar(&opts.system, "system", "", "system message")
	cmd.Flags().BoolVar(&opts.usage, "usage", false, "request and print token usage")
	cmd.Flags().BoolVar(&opts.lenient, "lenient", false, "accept a stream that ends without [DONE] after a finish reason")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func runChat(cmd *cobra.Command, flags *globalFlags, opts *chatOptions) error {
	ep, err := flags.endpoint()
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(nil)
	providerOpts := []openai.Option{
		openai.WithEndpoint(ep),
		openai.WithLogger(flags.logger(cmd.ErrOrStderr())),
		openai.WithMetrics(collector),
	}
	if opts.lenient {
		providerOpts = append(providerOpts, openai.WithLenientEnd())
	}
	p, err := openai.New(providerOpts...)
	if err != nil {
		return err
	}

	callOpts := []llm.Option{llm.WithProviderInstance(p), llm.WithModel(opts.model)}
	if opts.system != "" {
		callOpts = append(callOpts, llm.WithSystemMessage(opts.system))
	}
	if opts.usage {
		callOpts = append(callOpts, llm.WithUsage())
	}

	stream, err := llm.CallStream(cmd.Context(), opts.prompt, callOpts...)
	if err != nil {
		return err
	}
	defer stream.Close()

	out := cmd.OutOrStdout()
	for chunk := range stream.Chunks() {
		fmt.Fprint(out, chunk.Delta)
	}
	fmt.Fprintln(out)

	resp := stream.Response()
	for _, tc := range resp.ToolCalls() {
		fmt.Fprintf(out, "tool call %s %s(%s)\n", tc.ID, tc.Name, tc.Arguments)
	}
	if opts.usage {
		u := resp.Usage()
		fmt.Fprintf(cmd.ErrOrStderr(), "usage: prompt=%d completion=%d total=%d\n",
			u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	}

	if err := flags.dumpMetrics(cmd, collector); err != nil {
		return err
	}
	return stream.Err()
}
