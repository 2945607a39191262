package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/funnyzak/reqput/internal/group"
	"github.com/funnyzak/reqput/internal/server"
	"github.com/funnyzak/reqput/internal/session"
	"github.com/funnyzak/reqput/internal/web"
)

var errRequestFailed = errors.New("request failed")

// withApp builds the app, runs the session loop and calls fn
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stop, err := a.start(ctx)
	if err != nil {
		return err
	}
	defer stop()

	return fn(ctx, a)
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [file]",
		Short: "Send a request definition read from file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readDefinition(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			withHeaders, _ := cmd.Flags().GetBool("headers")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return send(ctx, a, text, withHeaders)
			})
		},
	}
	cmd.Flags().BoolP("headers", "i", false, "Show the response status line and headers")
	return cmd
}

func readDefinition(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read request definition: %w", err)
	}
	return string(data), nil
}

func send(ctx context.Context, a *app, text string, withHeaders bool) error {
	outcomes := make(chan session.Outcome, 1)
	listener := session.ListenerFunc(func(o session.Outcome) {
		select {
		case outcomes <- o:
		default:
		}
	})
	if err := a.session.AddListener(ctx, listener); err != nil {
		return err
	}

	id, err := a.session.Submit(ctx, text)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		if _, had, _ := a.session.Cancel(context.Background()); had {
			a.log.Info("Request cancelled", "id", id)
		}
		return ctx.Err()
	case o := <-outcomes:
		if o.Err != nil {
			_ = a.printer.PrintFailure(o.Request, o.Err, nil)
			return errRequestFailed
		}
		if err := a.printer.PrintResponse(o.Request, o.Response, withHeaders); err != nil {
			return err
		}
		if o.StoreErr != nil {
			_ = a.printer.PrintFailure(o.Request, nil, o.StoreErr)
		}
		return nil
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [filter]",
		Short: "List saved requests of a group",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				entries, err := a.session.List(ctx, a.groupID, filter)
				if err != nil {
					return err
				}
				return a.printer.PrintEntries(a.groupID, entries)
			})
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show METHOD URL",
		Short: "Show a saved request and its last response",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rec, err := a.store.Find(a.groupID, strings.ToUpper(args[0]), args[1])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("no saved request %s %s", strings.ToUpper(args[0]), args[1])
				}
				return a.printer.PrintStored(rec)
			})
		},
	}
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename METHOD URL [TITLE]",
		Short: "Set the title of a saved request, or clear it when TITLE is omitted",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := ""
			if len(args) == 3 {
				title = args[2]
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return a.session.Rename(ctx, a.groupID, strings.ToUpper(args[0]), args[1], title)
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete METHOD URL",
		Short: "Delete a saved request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return a.session.Delete(ctx, a.groupID, strings.ToUpper(args[0]), args[1])
			})
		},
	}
}

func newGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return a.printer.PrintGroups(a.groups.Groups())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set FILE",
		Short: "Validate FILE and save it as the group definitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read groups: %w", err)
			}
			parsed, err := group.Parse(data)
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.groups.Save(parsed); err != nil {
				return err
			}
			return a.printer.PrintGroups(a.groups.Groups())
		},
	})
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and result stream",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().IntP("port", "p", 0, "Listen port")
	cmd.Flags().String("admin-path", "", "API path prefix")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	a.cfg.Web.Enable = true
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	printStartupBanner(os.Stdout, a.cfg, a.log)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := web.NewService(&a.cfg.Web, a.log, a.session, a.groups)
	srv := server.New(&a.cfg.Web, a.log, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.session.Run(gctx)
	})
	g.Go(func() error {
		if err := a.session.SwitchGroup(gctx, a.groupID, ""); err != nil {
			return err
		}
		if err := svc.Attach(gctx); err != nil {
			return err
		}
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
