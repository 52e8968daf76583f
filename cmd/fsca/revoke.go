package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"fsca/certmanager"
	"fsca/config"
	"fsca/pkg/helper"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "revoke <cn>",
		Short: "revoke certificate, update CRL and remove its key and certificate",
		Args:  cobra.ExactArgs(1),
		RunE: managerFunc(true, func(ctx context.Context, mgr certmanager.Interface, args []string) error {
			rev, err := mgr.Revoke(ctx, args[0])
			if err != nil {
				return err
			}

			success.Printf("certificate revoked: %s\n", rev.Name)
			fmt.Printf("  serial:     %d\n", rev.Serial)
			fmt.Printf("  revoked at: %s\n", rev.RevokedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("  crl:        %s\n", filepath.Join(config.Dir(), config.CRLFile()))
			return nil
		}),
	})
}

func init() {
	cmd := &cobra.Command{
		Use:   "crl",
		Short: "generate certificate revocation list",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Bool("refresh", false, "sign CRL again even if it exists")
	cmd.Flags().StringP("output", "o", "", "also write CRL to file, - for stdout")

	cmd.RunE = managerFunc(true, func(ctx context.Context, mgr certmanager.Interface, args []string) error {
		refresh, _ := cmd.Flags().GetBool("refresh")
		output, _ := cmd.Flags().GetString("output")

		crlPEM, err := mgr.GenerateCRL(ctx, refresh)
		if err != nil {
			return err
		}

		if output != "" {
			return helper.WriteFile(output, crlPEM, 0o644)
		}

		success.Printf("CRL: %s\n", filepath.Join(config.Dir(), config.CRLFile()))
		return nil
	})

	rootCmd.AddCommand(cmd)
}
