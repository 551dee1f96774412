package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/config"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
)

// checkOutput is the JSON document the check command prints for a single URL.
type checkOutput struct {
	URL    string              `json:"url"`
	Link   domain.LinkResult   `json:"link"`
	Safety domain.SafetyResult `json:"safety"`
}

// checkCommand runs a one-off link and safety check for a single URL and
// prints both verdicts as JSON. It shares the serve command's engine wiring,
// so cached verdicts from previous runs are honored unless --bypass-cache
// is set.
func checkCommand(cfg *config.Config) *cobra.Command {
	var bypassCache bool

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Checks a single URL and prints its link and safety verdicts",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			validated, err := urlutil.Validate(args[0])
			if err != nil {
				logger.Fatal(ctx, "invalid url", zap.Error(err))
			}

			strg, closeStrg := getPostgres(ctx, cfg)
			defer closeStrg()

			eng := setupEngine(ctx, cfg, strg)

			// a stale blocklist only degrades the safety verdict, it never
			// blocks the link check
			err = eng.blocklist.EnsureFresh(ctx, func(current, total int, source string) {
				logger.Info(ctx, "downloading blocklist source",
					zap.Int("current", current),
					zap.Int("total", total),
					zap.String("source", source))
			})
			if err != nil {
				logger.Warn(ctx, "could not refresh blocklist, safety verdict may miss blocklist hits",
					zap.Error(err))
			}

			link := eng.links.Check(ctx, validated, bypassCache)
			safetyResult := eng.safety.Evaluate(ctx, validated, bypassCache, &link)

			out, err := json.MarshalIndent(checkOutput{
				URL:    validated.Normalized,
				Link:   link,
				Safety: safetyResult,
			}, "", "  ")
			if err != nil {
				logger.Fatal(ctx, "could not encode result", zap.Error(err))
			}

			fmt.Println(string(out))
		},
	}

	cmd.Flags().BoolVar(&bypassCache, "bypass-cache", false, "Re-check even when a cached verdict exists")

	return cmd
}
