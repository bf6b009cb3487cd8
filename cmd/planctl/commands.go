package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/arrangement"
	"github.com/boddenberg/arrangement-plans-go/internal/config"
	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/client"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/observability"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/resilience"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
	"github.com/boddenberg/arrangement-plans-go/internal/service"
)

// errRejected makes the process exit non-zero after all forms were reported.
var errRejected = errors.New("one or more plans were rejected")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "planctl",
		Short:        "Work with payment arrangement plans",
		SilenceUsage: true,
	}
	root.AddCommand(
		newValidateCmd(),
		newSummarizeCmd(),
		newMigrateCmd(),
		newTokenCmd(),
		newHashKeyCmd(),
		newApplyCmd(),
		newListCmd(),
	)
	return root
}

// ============================================================
// Offline commands
// ============================================================

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file|-]",
		Short: "Validate plan forms and print their summaries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			forms, err := readForms(cmd, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rejected := false
			for i, f := range forms {
				plan, err := arrangement.ValidateForm(f)
				if err != nil {
					rejected = true
					var verr *domain.ErrValidation
					if errors.As(err, &verr) {
						fmt.Fprintf(out, "%d\trejected\t%s\t%s\t%s\n", i, verr.Field, verr.Reason, verr.Message)
						continue
					}
					return err
				}
				fmt.Fprintf(out, "%d\tok\t%s\n", i, arrangement.Summarize(plan).Headline)
			}
			if rejected {
				return errRejected
			}
			return nil
		},
	}
}

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize [file|-]",
		Short: "Render stored plan payloads as headline and detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payloads, err := readPayloads(cmd, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range payloads {
				sp, err := arrangement.DecodeStored(p, "")
				if err != nil {
					return fmt.Errorf("plan %q: %w", p.ID, err)
				}
				s := arrangement.Summarize(sp.Plan)
				fmt.Fprintf(out, "%s\t%s\n", sp.Name, s.Headline)
				if s.Detail != nil {
					fmt.Fprintf(out, "\t%s\n", *s.Detail)
				}
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [file|-]",
		Short: "Rewrite legacy plan payloads into the canonical shape",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payloads, err := readPayloads(cmd, args)
			if err != nil {
				return err
			}

			changed := 0
			for i := range payloads {
				if arrangement.MigrateLegacy(&payloads[i]) {
					changed++
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(payloads); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "migrated %d of %d plans\n", changed, len(payloads))
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var subject, tenant, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin console token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if r := domain.Role(role); r != domain.RoleAdmin && r != domain.RoleViewer {
				return fmt.Errorf("role must be admin or viewer, got %q", role)
			}
			cfg := config.Load()
			auth := service.NewAuthService(cfg.JWTSecret, cfg.JWTTTL, nil, zap.NewNop())
			tok, err := auth.IssueToken(subject, tenant, domain.Role(role))
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(tok)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "planctl", "token subject")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "admin or viewer")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <api-key>",
		Short: "Hash an integration API key for API_KEY_HASHES",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := service.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// ============================================================
// Remote commands
// ============================================================

type remoteFlags struct {
	url     string
	token   string
	timeout time.Duration
}

func (f *remoteFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", envOr("PLANS_API_URL", "http://localhost:8080"), "plans API base URL")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("PLANS_API_TOKEN"), "bearer token")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "per-request timeout")
}

func (f *remoteFlags) client() (*client.PlansClient, error) {
	if f.token == "" {
		return nil, errors.New("a token is required (--token or PLANS_API_TOKEN)")
	}
	cfg := config.Load()
	logger := observability.NewLogger(cfg.LogLevel)
	return client.NewPlansClient(
		&http.Client{Timeout: f.timeout},
		strings.TrimRight(f.url, "/"),
		f.token,
		resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff, MaxConcurrency: 4},
		logger,
	), nil
}

func newApplyCmd() *cobra.Command {
	var remote remoteFlags
	cmd := &cobra.Command{
		Use:   "apply [file|-]",
		Short: "Create plans on the API from plan forms",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			forms, err := readForms(cmd, args)
			if err != nil {
				return err
			}
			c, err := remote.client()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rejected := false
			for i, f := range forms {
				view, err := c.Create(cmd.Context(), f)
				if err != nil {
					var verr *domain.ErrValidation
					if errors.As(err, &verr) {
						rejected = true
						fmt.Fprintf(out, "%d\trejected\t%s\t%s\t%s\n", i, verr.Field, verr.Reason, verr.Message)
						continue
					}
					return err
				}
				fmt.Fprintf(out, "%d\tcreated\t%s\t%s\n", i, view.ID, view.Summary.Headline)
			}
			if rejected {
				return errRejected
			}
			return nil
		},
	}
	remote.bind(cmd)
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		remote   remoteFlags
		tier     string
		planType string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the token tenant's plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter port.PlanFilter
			if tier != "" {
				t, ok := domain.ParseBalanceTier(tier)
				if !ok {
					return fmt.Errorf("unknown tier %q", tier)
				}
				filter.BalanceTier = t
			}
			if planType != "" {
				pt, ok := domain.ParsePlanType(planType)
				if !ok {
					return fmt.Errorf("unknown plan type %q", planType)
				}
				filter.PlanType = pt
			}

			c, err := remote.client()
			if err != nil {
				return err
			}
			views, err := c.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range views {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", v.ID, v.BalanceTier, v.Name, v.Summary.Headline)
			}
			return nil
		},
	}
	remote.bind(cmd)
	cmd.Flags().StringVar(&tier, "tier", "", "balance tier filter")
	cmd.Flags().StringVar(&planType, "type", "", "plan type filter")
	return cmd
}

// ============================================================
// Input
// ============================================================

// readInput returns the named file, or stdin for no argument or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

// decodeOneOrMany accepts a single JSON object or an array of them.
func decodeOneOrMany[T any](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("no input")
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return nil, err
		}
		return many, nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

func readForms(cmd *cobra.Command, args []string) ([]arrangement.PlanForm, error) {
	data, err := readInput(cmd, args)
	if err != nil {
		return nil, err
	}
	forms, err := decodeOneOrMany[arrangement.PlanForm](data)
	if err != nil {
		return nil, fmt.Errorf("decode plan forms: %w", err)
	}
	return forms, nil
}

func readPayloads(cmd *cobra.Command, args []string) ([]domain.PlanPayload, error) {
	data, err := readInput(cmd, args)
	if err != nil {
		return nil, err
	}
	payloads, err := decodeOneOrMany[domain.PlanPayload](data)
	if err != nil {
		return nil, fmt.Errorf("decode plan payloads: %w", err)
	}
	return payloads, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
