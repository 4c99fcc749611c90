package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/repocfg"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Manage per-repository settings",
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		var repos []repocfg.RepoConfig
		if err := newAPIClient().get("/api/repos", &repos); err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("No repositories configured.")
			return nil
		}

		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeaderAlignment(tw.AlignLeft),
			tablewriter.WithRendition(tw.Rendition{
				Borders:  tw.BorderNone,
				Settings: tw.Settings{Lines: tw.LinesNone, Separators: tw.SeparatorsNone},
			}),
			tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
		)
		table.Header([]string{"NAME", "BRANCH", "DIR", "TEST COMMAND", "AUTO-BUILD"})
		for _, r := range repos {
			auto := ""
			if r.AutoBuild {
				auto = "yes"
			}
			_ = table.Append([]string{
				r.Name, r.DefaultBranch, r.WorkingDir,
				truncateString(r.TestCommand, 40), auto,
			})
		}
		return table.Render()
	},
}

var reposSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a repository entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("branch")
		dir, _ := cmd.Flags().GetString("dir")
		testCommand, _ := cmd.Flags().GetString("test-command")
		autoBuild, _ := cmd.Flags().GetBool("auto-build")

		rc := repocfg.RepoConfig{
			Name:          args[0],
			DefaultBranch: branch,
			WorkingDir:    dir,
			TestCommand:   testCommand,
			AutoBuild:     autoBuild,
		}
		if err := newAPIClient().post("/api/repos", rc, nil); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", rc.Name)
		return nil
	},
}

func init() {
	reposSetCmd.Flags().String("branch", "", "Default branch")
	reposSetCmd.Flags().String("dir", "", "Checkout working directory")
	reposSetCmd.Flags().String("test-command", "", "Shell command the build loop scores against")
	reposSetCmd.Flags().Bool("auto-build", false, "Enqueue builds on webhook pushes")
	reposCmd.AddCommand(reposListCmd, reposSetCmd)
	rootCmd.AddCommand(reposCmd)
}
