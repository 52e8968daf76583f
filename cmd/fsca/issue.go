package main

import (
	"context"

	"github.com/spf13/cobra"

	"fsca/certmanager"
	"fsca/config"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "create certificate store directory and index",
		Args:  cobra.NoArgs,
		RunE: managerFunc(false, func(ctx context.Context, mgr certmanager.Interface, args []string) error {
			if err := mgr.Init(ctx); err != nil {
				return err
			}

			success.Printf("certificate store initialized: %s\n", config.Dir())
			return nil
		}),
	})
}

func init() {
	cmd := &cobra.Command{
		Use:   "root",
		Short: "create root key and self-signed certificate",
		Args:  cobra.NoArgs,
	}
	addPasswordFlags(cmd)
	cmd.Flags().String("cn", "", "common name of root certificate (default root.cn of config)")

	cmd.RunE = managerFunc(true, func(ctx context.Context, mgr certmanager.Interface, args []string) error {
		password, err := keyPassword(ctx, cmd, config.RootName())
		if err != nil {
			return err
		}

		cn, _ := cmd.Flags().GetString("cn")
		cert, err := mgr.Issue(ctx, certmanager.TypeRoot, cn, password)
		if err != nil {
			return err
		}

		printIssued(cert)
		return nil
	})

	rootCmd.AddCommand(cmd)
}

func init() {
	for typ, short := range map[certmanager.EntityType]string{
		certmanager.TypeServer: "issue server certificate for host name or IP address",
		certmanager.TypeClient: "issue client certificate",
	} {
		typ := typ

		cmd := &cobra.Command{
			Use:   typ.String() + " <cn>",
			Short: short,
			Args:  cobra.ExactArgs(1),
		}
		addPasswordFlags(cmd)

		cmd.RunE = managerFunc(true, func(ctx context.Context, mgr certmanager.Interface, args []string) error {
			password, err := keyPassword(ctx, cmd, args[0])
			if err != nil {
				return err
			}

			cert, err := mgr.Issue(ctx, typ, args[0], password)
			if err != nil {
				return err
			}

			printIssued(cert)
			return nil
		})

		rootCmd.AddCommand(cmd)
	}
}
