package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/PeerDB-io/gcp-inventory/activities"
	"github.com/PeerDB-io/gcp-inventory/resources"
)

// KindsMain lists the registered resource kinds.
func KindsMain(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCOMMAND\tREQUIRED SERVICE\tDEFAULT TABLE")
	for _, kind := range resources.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", kind.Name, kind.Command, kind.RequiredService, kind.DefaultTable)
	}
	return tw.Flush()
}

// SchemaMain prints the descriptor of a kind, or the BigQuery table schema
// derived from it when bigQuery is set.
func SchemaMain(w io.Writer, kindName string, schemaFile string, bigQuery bool) error {
	kind, err := resources.Lookup(kindName)
	if err != nil {
		return err
	}

	if !bigQuery && schemaFile == "" {
		raw, err := kind.SchemaJSON()
		if err != nil {
			return err
		}
		_, err = w.Write(raw)
		return err
	}

	desc, err := activities.LoadDescriptor(kind, schemaFile)
	if err != nil {
		return err
	}
	if !bigQuery {
		for _, name := range desc.ColumnNames() {
			fmt.Fprintln(w, name)
		}
		return nil
	}
	schema, err := desc.BigQuerySchema()
	if err != nil {
		return err
	}
	raw, err := schema.ToJSONFields()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}
