package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/samvad-hq/elink/pkg/codec"
	"github.com/samvad-hq/elink/pkg/elink"
	"github.com/samvad-hq/elink/pkg/record"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *CLI) reserveCommand() *cobra.Command {
	var (
		file  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve a DOI for a record without publishing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readRecord(cmd, file)
			if err != nil {
				return err
			}
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.Reserve(cmd.Context(), rec, force)
			if err != nil {
				return err
			}
			return c.respond(cmd, resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "record file (YAML or JSON, - for stdin)")
	cmd.Flags().BoolVar(&force, "force", false, "reserve even if the ledger already holds a reservation")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *CLI) postCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create or update a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readRecord(cmd, file)
			if err != nil {
				return err
			}
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.Post(cmd.Context(), rec)
			if err != nil {
				return err
			}
			return c.respond(cmd, resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "record file (YAML or JSON, - for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *CLI) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get OSTI_ID",
		Short: "Fetch a record by OSTI identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.render(cmd.OutOrStdout(), resp)
		},
	}
}

func (c *CLI) encodeCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the XML a record would be sent as",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readRecord(cmd, file)
			if err != nil {
				return err
			}
			var opts []codec.EncoderOption
			if c.cfg.SequenceWrapper {
				opts = append(opts, codec.WithSequenceWrapper())
			}
			out, err := codec.MarshalRecord(rec, opts...)
			if err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "record file (YAML or JSON, - for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// respond prints resp and turns a business failure into a command error.
func (c *CLI) respond(cmd *cobra.Command, resp *record.Record) error {
	if err := c.render(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if !elink.Succeeded(resp) {
		item := elink.Item(resp)
		return fmt.Errorf("elink rejected record: status %q: %s", item.Text("status"), item.Text("status_message"))
	}
	return nil
}

func (c *CLI) render(w io.Writer, resp *record.Record) error {
	if resp == nil {
		resp = record.New()
	}
	switch c.output {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("render yaml: %w", err)
		}
		return enc.Close()
	default:
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("render json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
}

func readRecord(cmd *cobra.Command, path string) (*record.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}
	rec, err := record.ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parse record file %s: %w", path, err)
	}
	return rec, nil
}
