package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/corridorwatch/internal/client"
	"github.com/ppiankov/corridorwatch/internal/config"
	"github.com/ppiankov/corridorwatch/internal/registry"
	"github.com/ppiankov/corridorwatch/internal/rpc"
)

var (
	corridorRemote string
	corridorFormat string
)

func init() {
	rootCmd.AddCommand(corridorCmd)
	corridorCmd.AddCommand(corridorListCmd)
	corridorCmd.AddCommand(corridorGetCmd)
	corridorCmd.AddCommand(corridorUpsertCmd)
	corridorCmd.PersistentFlags().StringVar(&corridorRemote, "remote", "", "Use a running server (host:port) instead of the local registry")
	corridorCmd.PersistentFlags().StringVarP(&corridorFormat, "format", "f", "text", "Output format (text|json)")
}

var corridorCmd = &cobra.Command{
	Use:   "corridor",
	Short: "Corridor registry operations",
	Long:  "List, inspect and upsert corridor records in the registry.",
}

var corridorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered corridors",
	Args:  cobra.NoArgs,
	RunE:  runCorridorList,
}

var corridorGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one corridor",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorridorGet,
}

var corridorUpsertCmd = &cobra.Command{
	Use:   "upsert <seed-file>",
	Short: "Insert or replace corridors from a seed file",
	Long: "Reads a corridor seed YAML (corridors: [...]) and upserts every record.\n" +
		"Locally this persists only when registry.database is set in config.",
	Args: cobra.ExactArgs(1),
	RunE: runCorridorUpsert,
}

func runCorridorList(cmd *cobra.Command, args []string) error {
	var records []rpc.CorridorRecord
	if corridorRemote != "" {
		c, err := client.New(corridorRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		records, err = c.List()
		if err != nil {
			return err
		}
	} else {
		srv, err := openLocal("")
		if err != nil {
			return err
		}
		defer srv.Close()
		records = srv.Corridors().Corridors
	}

	if corridorFormat == "json" {
		return printJSON(records)
	}
	printCorridors(records)
	return nil
}

func runCorridorGet(cmd *cobra.Command, args []string) error {
	var rec rpc.CorridorRecord
	if corridorRemote != "" {
		c, err := client.New(corridorRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		rec, err = c.Get(args[0])
		if err != nil {
			return err
		}
	} else {
		srv, err := openLocal("")
		if err != nil {
			return err
		}
		defer srv.Close()
		rec, err = srv.Corridor(args[0])
		if err != nil {
			return err
		}
	}

	if corridorFormat == "json" {
		return printJSON(rec)
	}
	printCorridors([]rpc.CorridorRecord{rec})
	return nil
}

func runCorridorUpsert(cmd *cobra.Command, args []string) error {
	cs, err := registry.LoadFile(args[0])
	if err != nil {
		return err
	}

	var stored []rpc.CorridorRecord
	if corridorRemote != "" {
		c, err := client.New(corridorRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		for _, cor := range cs {
			rec, err := c.Upsert(cor)
			if err != nil {
				return fmt.Errorf("upsert %s: %w", cor.ID, err)
			}
			stored = append(stored, rec)
		}
	} else {
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if conf.Registry.Database == "" {
			fmt.Fprintln(os.Stderr, "warning: registry.database is not set, upserts will not persist")
		}
		srv, err := openLocal("")
		if err != nil {
			return err
		}
		defer srv.Close()
		for _, cor := range cs {
			rec, err := srv.PutCorridor(rpc.UpsertRequest{Corridor: cor})
			if err != nil {
				return fmt.Errorf("upsert %s: %w", cor.ID, err)
			}
			stored = append(stored, rec)
		}
	}

	if corridorFormat == "json" {
		return printJSON(stored)
	}
	fmt.Printf("Upserted %d corridor(s)\n", len(stored))
	printCorridors(stored)
	return nil
}

func printCorridors(records []rpc.CorridorRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tECO\tFPIC\tRISK")
	for _, r := range records {
		c := r.Corridor
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
			c.ID, c.Kind, c.Eco.Aggregate().Value(), c.FPIC.Status, r.RiskLabel)
	}
	w.Flush()
}
