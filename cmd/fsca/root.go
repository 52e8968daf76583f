package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/whitekid/goxp/log"

	"fsca/certmanager"
	"fsca/config"
	"fsca/pkg/prompt"
)

var rootCmd = &cobra.Command{
	Use:           "fsca",
	Short:         "File-based private certificate authority",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configFile string

func init() {
	cobra.OnInitialize(initConfig)

	fs := rootCmd.PersistentFlags()
	fs.StringVar(&configFile, "config", "", "config file (default ./fsca.yaml)")
	fs.StringP("dir", "d", config.Dir(), "certificate store directory")
	fs.String("ca-password", "", "password of root key, tried before prompting (env FSCA_CA_PASSWORD)")
	fs.String("index", "", "certificate index database url, i.e. sqlite:///var/lib/fsca/index.db")

	for key, flag := range map[string]string{
		config.KeyDir:        "dir",
		config.KeyCAPassword: "ca-password",
		config.KeyIndexDSN:   "index",
	} {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			log.Fatalf("fail to read config: %v", err)
		}
		return
	}

	log.Debugf("using config file: %s", viper.ConfigFileUsed())
}

var (
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
)

// terminal is shared by every prompt of a command; each Terminal buffers stdin
var terminal = sync.OnceValue(prompt.New)

// managerFunc run fn with certificate manager; mutating commands hold the store lock.
func managerFunc(lock bool, fn func(ctx context.Context, mgr certmanager.Interface, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		mgr, store, err := certmanager.NewFromConfig(terminal())
		if err != nil {
			return err
		}

		if lock {
			if err := mgr.Init(ctx); err != nil {
				return err
			}

			unlock, err := store.Lock(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if e := unlock(); e != nil && err == nil {
					err = e
				}
			}()
		}

		return fn(ctx, mgr, args)
	}
}

// keyPassword returns password for a new key from --password or --ask-password
func keyPassword(ctx context.Context, cmd *cobra.Command, name string) ([]byte, error) {
	password, _ := cmd.Flags().GetString("password")
	ask, _ := cmd.Flags().GetBool("ask-password")

	switch {
	case password != "" && ask:
		return nil, errors.New("--password and --ask-password are exclusive")
	case ask:
		return terminal().NewPassword(ctx, name+".key")
	case password != "":
		return []byte(password), nil
	}

	warning.Fprintf(os.Stderr, "Warning: private key %s.key is not encrypted\n", name)
	return nil, nil
}

func addPasswordFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("password", "p", "", "encrypt private key with password")
	cmd.Flags().Bool("ask-password", false, "ask password to encrypt private key")
}

func printIssued(cert *certmanager.Certificate) {
	success.Printf("%s certificate issued: %s\n", cert.Type, cert.CN)
	fmt.Printf("  serial:     %d\n", cert.Serial)
	fmt.Printf("  not after:  %s\n", cert.NotAfter.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  files:      %s.key, %s.crt\n", cert.Name, cert.Name)
}
