package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"diffraxia-go/internal/ingest"
	"diffraxia-go/internal/output"
)

type rawlogOptions struct {
	limit   int
	summary bool
}

func newRawlogCmd(a *app) *cobra.Command {
	var opts rawlogOptions
	cmd := &cobra.Command{
		Use:   "rawlog <file.bin>",
		Short: "Dump the messages recorded by stream2tiff --raw-log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.resolve(cmd); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open rawlog: %w", err)
			}
			defer f.Close()
			return dumpRawLog(a, f, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 1, "Number of records to dump (0 = all)")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print one line per message instead of the decoded CBOR")
	return cmd
}

func dumpRawLog(a *app, r io.Reader, w io.Writer, opts rawlogOptions) error {
	rl, err := output.NewRawLogReader(r)
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for count := 0; opts.limit <= 0 || count < opts.limit; count++ {
		rec, err := rl.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read record %d: %w", count, err)
		}

		if opts.summary {
			msg, err := ingest.Decode(rec.Payload)
			if err != nil {
				a.log.Warn().Err(err).Int("record", count).Msg("decode failed")
				continue
			}
			counts[msg.Type]++
			line := fmt.Sprintf("%s %s series=%d", rec.Time.Format(time.RFC3339Nano), msg.Type, msg.SeriesID)
			if msg.Type == ingest.TypeImage {
				keys, _ := msg.Frame.Keys()
				line += fmt.Sprintf(" image=%d channels=%v", msg.ImageID, keys)
			}
			fmt.Fprintln(w, line)
			continue
		}

		if len(rec.Payload) == 0 {
			a.log.Info().Int("record", count).Msg("empty payload")
			continue
		}
		var decoded any
		if err := cbor.Unmarshal(rec.Payload, &decoded); err != nil {
			a.log.Warn().Err(err).Int("record", count).Msg("CBOR decode error")
			continue
		}
		pretty, err := json.MarshalIndent(output.NormalizeJSONValue(decoded), "", "  ")
		if err != nil {
			a.log.Warn().Err(err).Int("record", count).Msg("JSON encode error")
			continue
		}
		a.log.Info().Int("record", count).Time("timestamp", rec.Time).Int("size", len(rec.Payload)).Msg("record")
		fmt.Fprintln(w, string(pretty))
	}
	if opts.summary {
		fmt.Fprintf(w, "summary: start=%d image=%d end=%d\n",
			counts[ingest.TypeStart], counts[ingest.TypeImage], counts[ingest.TypeEnd])
	}
	return nil
}
