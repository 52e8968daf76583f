package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/whitekid/goxp/fx"
	"github.com/whitekid/goxp/log"

	"fsca/certmanager"
	"fsca/pkg/helper"
)

func init() {
	cmd := &cobra.Command{
		Use:   "verify <cn>...",
		Short: "verify certificates against root certificate and CRL",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.Flags().Bool("file", false, "arguments are certificate files or urls instead of names")

	cmd.RunE = managerFunc(false, func(ctx context.Context, mgr certmanager.Interface, args []string) error {
		isFile, _ := cmd.Flags().GetBool("file")

		failed := 0
		for _, arg := range args {
			if err := verifyOne(ctx, mgr, arg, isFile); err != nil {
				warning.Printf("%s: %v\n", arg, err)
				failed++
				continue
			}
			success.Printf("%s: OK\n", arg)
		}

		if failed > 0 {
			return errors.Errorf("%d of %d certificates failed to verify", failed, len(args))
		}
		return nil
	})

	rootCmd.AddCommand(cmd)
}

func verifyOne(ctx context.Context, mgr certmanager.Interface, arg string, isFile bool) error {
	if !isFile {
		_, err := mgr.Verify(ctx, arg)
		return err
	}

	certPEM, err := helper.ReadFileOrURL(arg)
	if err != nil {
		return err
	}

	cert, err := mgr.VerifyPEM(ctx, certPEM)
	if err != nil {
		return err
	}
	log.Debugf("verified: subject=%s, serial=%s", cert.Subject, cert.SerialNumber)

	return nil
}

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list certificates in store",
		Args:  cobra.NoArgs,
	}
	addOutputFlag(cmd, formatTable)

	cmd.RunE = managerFunc(false, func(ctx context.Context, mgr certmanager.Interface, args []string) error {
		certs, err := mgr.List(ctx)
		if err != nil {
			return err
		}

		type item struct {
			Name     string `json:"name" yaml:"name"`
			Type     string `json:"type" yaml:"type"`
			CN       string `json:"cn" yaml:"cn"`
			Serial   int64  `json:"serial" yaml:"serial"`
			NotAfter string `json:"not_after" yaml:"not_after"`
		}

		items := fx.Map(certs, func(c *certmanager.Certificate) item {
			return item{Name: c.Name, Type: c.Type.String(), CN: c.CN, Serial: c.Serial, NotAfter: c.NotAfter.Format("2006-01-02T15:04:05Z07:00")}
		})

		return writeOutput(cmd, items, func(w io.Writer) {
			fmt.Fprintln(w, "SERIAL\tNAME\tTYPE\tCN\tNOT AFTER")
			fx.ForEach(certs, func(_ int, c *certmanager.Certificate) {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.Serial, c.Name, c.Type, c.CN, formatTime(c.NotAfter))
			})
		})
	})

	rootCmd.AddCommand(cmd)
}

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "show issued and revoked certificates recorded in index",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("name", "", "filter by certificate name")
	cmd.Flags().String("status", "", "filter by status: active, revoked")
	addOutputFlag(cmd, formatTable)

	cmd.RunE = managerFunc(false, func(ctx context.Context, mgr certmanager.Interface, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		status, _ := cmd.Flags().GetString("status")

		opts := certmanager.ListOpt{Name: name}
		if status != "" {
			opts.Status = certmanager.ParseStatus(status)
			if opts.Status == certmanager.StatusNone {
				return errors.Errorf("unknown status: %s", status)
			}
		}

		records, err := mgr.History(ctx, opts)
		if err != nil {
			return err
		}

		return writeOutput(cmd, records, recordTable(records))
	})

	rootCmd.AddCommand(cmd)
}
