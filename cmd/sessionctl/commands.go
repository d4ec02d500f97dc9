package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() < n {
		return fmt.Errorf("usage: %s %s", c.Command.Name, usage)
	}
	return nil
}

// IssueCommand creates a session for a subject.
func IssueCommand() *cli.Command {
	return &cli.Command{
		Name:      "issue",
		Usage:     "Issue a credential for a subject",
		ArgsUsage: "SUBJECT_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user-agent", Aliases: []string{"a"}, Usage: "User-Agent used for device classification"},
			&cli.StringFlag{Name: "device", Aliases: []string{"d"}, Usage: "Device class hint: web, mobile, desktop, api"},
			&cli.StringFlag{Name: "ip", Usage: "Source address recorded on the session"},
		},
		Action: issueAction,
	}
}

func issueAction(c *cli.Context) error {
	if err := requireArgs(c, 1, "SUBJECT_ID"); err != nil {
		return err
	}
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	ctx := goSession.WithUserAgent(commandContext(c), c.String("user-agent"))
	ctx = goSession.WithDeviceHint(ctx, c.String("device"))
	ctx = goSession.WithClientIP(ctx, c.String("ip"))

	issued, err := rt.engine.IssueSession(ctx, c.Args().First())
	if err != nil {
		return err
	}
	rt.log.Debug("session issued",
		zap.String("subject", issued.SubjectID),
		logging.Credential("credential", issued.Credential),
		logging.IP("ip", c.String("ip")),
		zap.Int("replaced", issued.Replaced),
	)
	return rt.printer.record(issued, [][2]string{
		{"credential", issued.Credential},
		{"subject", issued.SubjectID},
		{"device", issued.DeviceClass.String()},
		{"label", issued.DeviceLabel},
		{"expires", issued.ExpiresAt.Format(time.RFC3339)},
		{"replaced", strconv.Itoa(issued.Replaced)},
	})
}

// VerifyCommand checks a credential.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Verify a credential",
		ArgsUsage: "CREDENTIAL",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "CREDENTIAL"); err != nil {
				return err
			}
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			id, err := rt.engine.Verify(commandContext(c), c.Args().First())
			if err != nil {
				rt.log.Debug("credential rejected", logging.Credential("credential", c.Args().First()), zap.Error(err))
				if goSession.IsInfrastructure(err) {
					return err
				}
				return cli.Exit("invalid: "+reason(err), 3)
			}
			return rt.printer.record(id, [][2]string{
				{"subject", id.SubjectID},
				{"token_id", id.TokenID},
				{"device", id.DeviceClass.String()},
				{"issued", id.IssuedAt.Format(time.RFC3339)},
				{"expires", id.ExpiresAt.Format(time.RFC3339)},
			})
		},
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, goSession.ErrSessionRevoked):
		return "revoked"
	case errors.Is(err, goSession.ErrTokenExpired):
		return "expired"
	case errors.Is(err, goSession.ErrTokenSignature):
		return "bad signature"
	case errors.Is(err, goSession.ErrSubjectMismatch):
		return "subject mismatch"
	case errors.Is(err, goSession.ErrRecordCorrupt):
		return "corrupt record"
	default:
		return "malformed"
	}
}

// RevokeCommand revokes one credential.
func RevokeCommand() *cli.Command {
	return &cli.Command{
		Name:      "revoke",
		Usage:     "Revoke one credential of a subject",
		ArgsUsage: "SUBJECT_ID CREDENTIAL",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2, "SUBJECT_ID CREDENTIAL"); err != nil {
				return err
			}
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			if err := rt.engine.Revoke(commandContext(c), c.Args().Get(0), c.Args().Get(1)); err != nil {
				return err
			}
			return rt.printer.record(map[string]bool{"revoked": true}, [][2]string{{"revoked", "true"}})
		},
	}
}

// RevokeAllCommand revokes every session of a subject.
func RevokeAllCommand() *cli.Command {
	return &cli.Command{
		Name:      "revoke-all",
		Usage:     "Revoke every session of a subject",
		ArgsUsage: "SUBJECT_ID",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "SUBJECT_ID"); err != nil {
				return err
			}
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			n, err := rt.engine.LogoutAll(commandContext(c), c.Args().First())
			if err != nil {
				return err
			}
			return rt.printer.record(map[string]int{"revoked": n}, [][2]string{{"revoked", strconv.Itoa(n)}})
		},
	}
}

// RevokeDeviceCommand revokes a subject's session of one device class.
func RevokeDeviceCommand() *cli.Command {
	return &cli.Command{
		Name:      "revoke-device",
		Usage:     "Revoke a subject's session of one device class",
		ArgsUsage: "SUBJECT_ID CLASS",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2, "SUBJECT_ID CLASS"); err != nil {
				return err
			}
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			found, err := rt.engine.RevokeDevice(commandContext(c), c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}
			return rt.printer.record(map[string]bool{"found": found}, [][2]string{{"found", strconv.FormatBool(found)}})
		},
	}
}

// SessionsCommand lists a subject's live sessions.
func SessionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "sessions",
		Aliases:   []string{"ls"},
		Usage:     "List a subject's live sessions",
		ArgsUsage: "SUBJECT_ID",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "SUBJECT_ID"); err != nil {
				return err
			}
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			sessions, err := rt.engine.Sessions(commandContext(c), c.Args().First())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				rows = append(rows, []string{
					s.Fingerprint,
					s.DeviceClass.String(),
					s.DeviceLabel,
					s.SourceAddress,
					s.CreatedAt.Format(time.RFC3339),
					s.ExpiresAt.Format(time.RFC3339),
				})
			}
			return rt.printer.table(sessions, []string{"ID", "DEVICE", "LABEL", "ADDRESS", "CREATED", "EXPIRES"}, rows)
		},
	}
}

// SweepCommand runs one maintenance pass.
func SweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Remove expired session records",
		Action: func(c *cli.Context) error {
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			n, err := rt.engine.Sweep(commandContext(c))
			if err != nil {
				return err
			}
			return rt.printer.record(map[string]int{"removed": n}, [][2]string{{"removed", strconv.Itoa(n)}})
		},
	}
}

// RateLimitCommand inspects and manipulates fixed windows.
func RateLimitCommand() *cli.Command {
	return &cli.Command{
		Name:    "ratelimit",
		Aliases: []string{"rl"},
		Usage:   "Inspect or exercise rate-limit windows",
		Subcommands: []*cli.Command{
			{
				Name:      "hit",
				Usage:     "Record one hit and report whether it was allowed",
				ArgsUsage: "IDENTIFIER",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 100, Usage: "Hits allowed per window"},
					&cli.DurationFlag{Name: "window", Aliases: []string{"w"}, Value: time.Minute, Usage: "Window length"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "IDENTIFIER"); err != nil {
						return err
					}
					rt, err := getRuntime(c)
					if err != nil {
						return err
					}
					ok, err := rt.engine.Allow(commandContext(c), c.Args().First(), c.Int("limit"), c.Duration("window"))
					if err != nil {
						return err
					}
					return rt.printer.record(map[string]bool{"allowed": ok}, [][2]string{{"allowed", strconv.FormatBool(ok)}})
				},
			},
			{
				Name:      "status",
				Usage:     "Show the current count and remaining window",
				ArgsUsage: "IDENTIFIER",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "IDENTIFIER"); err != nil {
						return err
					}
					rt, err := getRuntime(c)
					if err != nil {
						return err
					}
					ctx := commandContext(c)
					n, err := rt.engine.RateCount(ctx, c.Args().First())
					if err != nil {
						return err
					}
					left, err := rt.engine.RateRemaining(ctx, c.Args().First())
					if err != nil {
						return err
					}
					out := struct {
						Count     int64  `json:"count"`
						Remaining string `json:"remaining"`
					}{n, left.String()}
					return rt.printer.record(out, [][2]string{{"count", strconv.FormatInt(n, 10)}, {"remaining", left.String()}})
				},
			},
			{
				Name:      "reset",
				Usage:     "Clear a window",
				ArgsUsage: "IDENTIFIER",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "IDENTIFIER"); err != nil {
						return err
					}
					rt, err := getRuntime(c)
					if err != nil {
						return err
					}
					if err := rt.engine.ResetRate(commandContext(c), c.Args().First()); err != nil {
						return err
					}
					return rt.printer.record(map[string]bool{"reset": true}, [][2]string{{"reset", "true"}})
				},
			},
		},
	}
}

// CodeCommand issues and checks one-time verification codes.
func CodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "code",
		Usage: "Issue or check one-time verification codes",
		Subcommands: []*cli.Command{
			{
				Name:      "issue",
				Usage:     "Generate and store a code",
				ArgsUsage: "IDENTIFIER",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "IDENTIFIER"); err != nil {
						return err
					}
					rt, err := getRuntime(c)
					if err != nil {
						return err
					}
					code, err := rt.engine.GenerateCode(commandContext(c), c.Args().First())
					if err != nil {
						return err
					}
					return rt.printer.record(map[string]string{"code": code}, [][2]string{{"code", code}})
				},
			},
			{
				Name:      "verify",
				Usage:     "Check and consume a code",
				ArgsUsage: "IDENTIFIER CODE",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2, "IDENTIFIER CODE"); err != nil {
						return err
					}
					rt, err := getRuntime(c)
					if err != nil {
						return err
					}
					ok, err := rt.engine.VerifyCode(commandContext(c), c.Args().Get(0), c.Args().Get(1))
					if err != nil {
						return err
					}
					if !ok {
						return cli.Exit("code rejected", 3)
					}
					return rt.printer.record(map[string]bool{"valid": true}, [][2]string{{"valid", "true"}})
				},
			},
			{
				Name:      "status",
				Usage:     "Report whether a code is pending without consuming it",
				ArgsUsage: "IDENTIFIER",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "IDENTIFIER"); err != nil {
						return err
					}
					rt, err := getRuntime(c)
					if err != nil {
						return err
					}
					pending, err := rt.engine.CodePending(commandContext(c), c.Args().First())
					if err != nil {
						return err
					}
					return rt.printer.record(map[string]bool{"pending": pending}, [][2]string{{"pending", strconv.FormatBool(pending)}})
				},
			},
		},
	}
}

// HealthCommand pings the store.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check store connectivity",
		Action: func(c *cli.Context) error {
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			h := rt.engine.Health(commandContext(c))
			if err := rt.printer.record(h, [][2]string{
				{"healthy", strconv.FormatBool(h.Healthy)},
				{"latency", h.Latency.String()},
			}); err != nil {
				return err
			}
			if !h.Healthy {
				return cli.Exit("unhealthy: "+h.Error, 2)
			}
			return nil
		},
	}
}
