package cmd

import (
	"fmt"

	"packsync/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists the pack's recorded versions, newest first",
	Run: func(_ *cobra.Command, _ []string) {
		runHistory()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory() {
	a := bootstrap()
	pack := a.mustPack()

	versionList, err := a.store.ListVersions(pack.PackID)
	if err != nil {
		log.Fatalw("Failed to list versions", zap.Error(err))
	}
	if len(versionList) == 0 {
		fmt.Printf("No versions recorded for pack %s yet.\n", ui.Bold(pack.PackID))
		return
	}

	fmt.Printf("History of %s:\n\n", ui.Bold(pack.Name))
	for i := range versionList {
		v := &versionList[i]
		line := fmt.Sprintf("%s  %s  %d mods", ui.Bold(v.VersionID), v.CreatedAt.Format("2006-01-02 15:04"), len(v.ModIDs))
		if v.Tag != "" {
			line += "  " + ui.Good("["+v.Tag+"]")
		}
		fmt.Println(line)
		if v.Message != "" {
			fmt.Printf("    %s\n", v.Message)
		}
	}
}
