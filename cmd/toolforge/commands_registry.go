package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"toolforge/internal/primitive"
	"toolforge/internal/store"
)

var (
	createFile   string
	listCategory string
	listEnabled  bool
	listLimit    int
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a primitive from a JSON definition file",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(createFile)
		if err != nil {
			return err
		}
		var def primitive.Definition
		if err := json.Unmarshal(raw, &def); err != nil {
			return fmt.Errorf("invalid definition: %w", err)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.reg.Create(def)
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered primitives",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		prims, err := a.reg.List(store.ListFilter{
			Category:    listCategory,
			EnabledOnly: listEnabled,
			Limit:       listLimit,
		})
		if err != nil {
			return err
		}
		for _, p := range prims {
			marker := " "
			if p.Enabled {
				marker = "*"
			}
			builtin := ""
			if p.BuiltIn {
				builtin = " [built-in]"
			}
			fmt.Printf("%s %-24s v%-3d %s%s\n", marker, p.Name, p.Version, p.Description, builtin)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search primitives by name, description, or tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		prims, err := a.reg.Search(args[0])
		if err != nil {
			return err
		}
		return printJSON(prims)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Show a primitive definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.reg.Get(args[0])
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id|name>",
	Short: "Delete a primitive (built-ins are protected)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.reg.Get(args[0])
		if err != nil {
			return err
		}
		if err := a.reg.Delete(p.ID); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", p.Name)
		return nil
	},
}

var mountCmd = &cobra.Command{
	Use:   "mount <id|name>",
	Short: "Enable a primitive for invocation",
	Args:  cobra.ExactArgs(1),
	RunE:  toggleMount(true),
}

var dismountCmd = &cobra.Command{
	Use:   "dismount <id|name>",
	Short: "Disable a primitive without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE:  toggleMount(false),
}

func toggleMount(mount bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.reg.Get(args[0])
		if err != nil {
			return err
		}
		if mount {
			if err := a.reg.Mount(p.ID); err != nil {
				return err
			}
			fmt.Printf("mounted %s\n", p.Name)
			return nil
		}
		if err := a.reg.Dismount(p.ID); err != nil {
			return err
		}
		fmt.Printf("dismounted %s\n", p.Name)
		return nil
	}
}

func init() {
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "definition file (JSON)")
	createCmd.MarkFlagRequired("file")

	listCmd.Flags().StringVar(&listCategory, "category", "", "filter by category")
	listCmd.Flags().BoolVar(&listEnabled, "enabled", false, "only mounted primitives")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum results")
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
