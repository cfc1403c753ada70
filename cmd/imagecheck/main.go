package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"alcyxob/imagegate/internal/config"
	"alcyxob/imagegate/internal/domain"
	"alcyxob/imagegate/internal/pipeline"
	"alcyxob/imagegate/internal/service"
)

var (
	errVerifyFailed = errors.New("one or more files are not valid images")

	configDir string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "imagecheck: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imagecheck",
		Short: "Offline checks for the image upload server",
		Long: `imagecheck runs the same content verification the upload server applies to
stored files, without a server or a database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".", "Directory holding config.yaml")
	cmd.AddCommand(
		newVerifyCmd(),
		newTokenCmd(),
	)
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "verify FILE...",
		Short: "Check that files are images with positive dimensions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verifier := pipeline.NewVerifier()
			out := cmd.OutOrStdout()
			failed := false
			for _, path := range args {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				info, err := verifier.VerifyFile(path)
				if err != nil {
					failed = true
					fmt.Fprintf(out, "FAIL %s %s\n", path, domain.ReasonOf(err))
					continue
				}
				if !quiet {
					fmt.Fprintf(out, "OK %s %s %dx%d\n", path, info.Format, info.Width, info.Height)
				}
			}
			if failed {
				return errVerifyFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print failures")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for the upload routes using jwt.secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			token, err := service.NewAuthService(cfg.JWT.Secret, cfg.JWT.Expiration).IssueToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "User recorded as the uploader")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
