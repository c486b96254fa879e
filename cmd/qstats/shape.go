package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonwraymond/querystats/encoder"
	"github.com/jonwraymond/querystats/key"
)

func shapeCmd() *cobra.Command {
	var (
		strict         bool
		collectionType string
	)
	cmd := &cobra.Command{
		Use:   "shape [file]",
		Short: "Print the query stats key of a command",
		Long: `Reads one command document as Extended JSON from file, or from stdin
when no file is given, and prints its query stats key.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			var body bson.D
			if err := bson.UnmarshalExtJSON(data, false, &body); err != nil {
				return fmt.Errorf("parse command: %w", err)
			}
			req, err := key.NewRequest(body)
			if err != nil {
				return err
			}
			a, err := key.NewAssembler(key.Options{Strict: strict})
			if err != nil {
				return err
			}
			k, err := a.Assemble(req, key.ExecContext{CollectionType: key.CollectionType(collectionType)})
			if err != nil {
				return err
			}
			enc, err := encoder.Encode(k)
			if err != nil {
				return err
			}
			return writeExtJSON(cmd.OutOrStdout(), bson.D{
				{Key: "keyHash", Value: encoder.ID(k.Command, enc)},
				{Key: "key", Value: k.Document()},
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject options unknown to the command")
	cmd.Flags().StringVar(&collectionType, "collection-type", "", "Collection type of the namespace (default collection)")
	return cmd
}
