// Copyright 2022, Pulumi Corporation.  All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pulumi/lsp-dispatch/sdk/config"
	"github.com/pulumi/lsp-dispatch/sdk/lsp"
	"github.com/pulumi/lsp-dispatch/sdk/project"
	"github.com/pulumi/lsp-dispatch/sdk/rest"
	"github.com/pulumi/lsp-dispatch/sdk/version"
)

func main() {
	defer panicHandler()
	if err := newDispatchCommand().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "An error occurred: %v\n", err)
		// We ignore the error, since there is nothing to do with it
		os.Exit(1)
	}
}

type globalFlags struct {
	v          *viper.Viper
	configFile string
	level      zap.AtomicLevel
}

func newDispatchCommand() *cobra.Command {
	flags := &globalFlags{
		v:     config.New(),
		level: zap.NewAtomicLevel(),
	}
	cmd := &cobra.Command{
		Use:          "lsp-dispatch",
		Short:        "Route LSP requests to the language servers that handle them",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to the configuration file")
	cmd.PersistentFlags().String("log-level", "info", "one of debug, info, warn or error")
	_ = flags.v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newStdioCmd(flags))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and the event stream over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDispatcher(flags)
			if err != nil {
				return err
			}
			defer d.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rewriter := project.NewRewriter(d.cfg.Workspace.URIPrefix)
			srv := &http.Server{
				Addr:    d.cfg.HTTP.Address,
				Handler: rest.New(d.service, d.hub, rewriter, d.logger).Router(),
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeouts.Shutdown)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					d.logger.Warnf("Stopping the HTTP server: %v", err)
				}
			}()

			d.logger.Infof("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", ":4040", "address to listen on")
	_ = flags.v.BindPFlag("http.address", cmd.Flags().Lookup("addr"))
	return cmd
}

func newStdioCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Speak LSP to a single editor over stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDispatcher(flags)
			if err != nil {
				return err
			}
			defer d.close()

			server := lsp.NewServer(d.service.Methods(d.hub, appName, version.String()), &stdio{false})
			server.Logger = d.logger
			return server.Run(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print lsp-dispatch's version number",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Printf("%v\n", version.Version)
		},
	}
}

func panicHandler() {
	if panicPayload := recover(); panicPayload != nil {
		stack := string(debug.Stack())
		fmt.Fprintln(os.Stderr, "================================================================================")
		fmt.Fprintln(os.Stderr, "lsp-dispatch encountered a fatal error. This is a bug!")
		fmt.Fprintln(os.Stderr, "Please provide all of the below text in your report.")
		fmt.Fprintln(os.Stderr, "================================================================================")
		fmt.Fprintf(os.Stderr, "lsp-dispatch Version: %s\n", version.Version)
		fmt.Fprintf(os.Stderr, "Go Version:           %s\n", runtime.Version())
		fmt.Fprintf(os.Stderr, "Go Compiler:          %s\n", runtime.Compiler)
		fmt.Fprintf(os.Stderr, "Architecture:         %s\n", runtime.GOARCH)
		fmt.Fprintf(os.Stderr, "Operating System:     %s\n", runtime.GOOS)
		fmt.Fprintf(os.Stderr, "Panic:                %s\n\n", panicPayload)
		fmt.Fprintln(os.Stderr, stack)
		os.Exit(1)
	}
}

// An io.ReadWriteCloser, whose value indicates if the closer is closed.
type stdio struct{ bool }

func (s *stdio) Read(p []byte) (n int, err error) {
	if s.bool {
		return 0, io.EOF
	}
	return os.Stdin.Read(p)
}

func (s *stdio) Write(p []byte) (n int, err error) {
	if s.bool {
		return 0, io.EOF
	}
	return os.Stdout.Write(p)
}

func (s *stdio) Close() error {
	s.bool = true
	return nil
}
