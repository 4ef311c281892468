// Command ldapserverd is a small composition root around ldapserver:
// it wires a Config together from flags/environment/config file via
// cobra and viper, seeds an in-memory backend, and serves.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nvllz/ldapserver"
	"github.com/nvllz/ldapserver/examples/memdir"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "ldapserverd",
		Short: "Serve LDAPv3 requests against an in-memory directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":389", "address to listen on")
	flags.Duration("read-timeout", 0, "per-message read timeout (0 disables)")
	flags.Duration("write-timeout", 0, "per-message write timeout (0 disables)")
	flags.String("log-level", "info", "zerolog level: debug, info, warn, error")
	flags.StringSlice("naming-context", nil, "base DN this server claims to serve (repeatable)")

	v.BindPFlags(flags)
	v.SetEnvPrefix("LDAPSERVERD")
	v.AutomaticEnv()
	v.SetConfigName("ldapserverd")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ldapserverd")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			cobra.CheckErr(err)
		}
	}

	return cmd
}

func run(v *viper.Viper) error {
	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	backend := memdir.NewBackend()
	backend.Put(&memdir.Entry{
		DN: "cn=admin,dc=example,dc=org",
		Attributes: map[string][]string{
			"objectClass":  {"organizationalRole"},
			"userPassword": {"admin"},
		},
	})

	cfg := &ldapserver.Config{
		Handler:        backend,
		NamingContexts: v.GetStringSlice("naming-context"),
		ReadTimeout:    v.GetDuration("read-timeout"),
		WriteTimeout:   v.GetDuration("write-timeout"),
		Logger:         logger,
	}

	srv := ldapserver.NewServer(cfg)
	logger.Info().Str("addr", v.GetString("addr")).Msg("starting ldapserverd")
	return srv.ListenAndServe(v.GetString("addr"))
}
