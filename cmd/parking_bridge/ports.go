package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/NotCoffee418/parking_bridge/pkg/portscan"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports that look like a parking controller",
	Long: `List serial ports whose description contains one of the markers
(default: Arduino, CH340, USB Serial). This is the same list /api/ports returns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		markers, _ := cmd.Flags().GetStringSlice("marker")
		asJSON, _ := cmd.Flags().GetBool("json")

		ports := portscan.NewScanner(markers).ListCandidatePorts()

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ports)
		}

		if len(ports) == 0 {
			fmt.Println("No matching serial ports found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PORT\tDESCRIPTION")
		for _, p := range ports {
			fmt.Fprintf(w, "%s\t%s\n", p.Port, p.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().StringSliceP("marker", "m", portscan.DefaultMarkers, "Description substrings that mark a candidate port")
	portsCmd.Flags().Bool("json", false, "Print the list as JSON")
}
