// Command caustic is a small CLI around the store/interp/idl packages, in
// the shape of the teacher's go-ycsb command: a spf13/cobra root command
// with config loaded from a TOML file before any subcommand runs.
package main

import (
	"fmt"
	"os"

	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sciss/caustic/config"
	"github.com/Sciss/caustic/dsl"
	"github.com/Sciss/caustic/expr"
	"github.com/Sciss/caustic/idl"
	"github.com/Sciss/caustic/literal"
	"github.com/Sciss/caustic/store"
	"github.com/Sciss/caustic/store/memory"
)

var (
	configPath string
	globalConf *config.Config
	globalDB   store.Database
)

func initialGlobal() error {
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		globalConf = c
	} else {
		globalConf = config.NewDefaultConfig()
	}
	if err := globalConf.SetupLogger(); err != nil {
		return err
	}
	switch globalConf.Backend {
	case "memory":
		globalDB = memory.New()
	default:
		return fmt.Errorf("caustic: unsupported backend %q", globalConf.Backend)
	}
	return nil
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <transaction.json>",
		Short: "parse and execute one transaction document against the configured backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tx, err := idl.Parse(data)
			if err != nil {
				return err
			}
			result, err := store.Execute(globalDB, tx)
			if err != nil {
				return err
			}
			fmt.Println(renderLiteral(result))
			return nil
		},
	}
}

func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run the initialize-or-increment counter scenario 100 times and print x/value",
		RunE: func(cmd *cobra.Command, args []string) error {
			for i := 0; i < 100; i++ {
				c := dsl.NewContext()
				x := c.Select("x")
				c.IfElse(expr.Negate(x.Exists()),
					func() { x.SetField("value", expr.Lit(literal.One)) },
					func() { x.SetField("value", expr.Add(x.Field("value"), expr.Lit(literal.One))) },
				)
				tx, err := c.Finish()
				if err != nil {
					return err
				}
				if _, err := store.Execute(globalDB, tx); err != nil {
					return err
				}
			}
			revs, err := globalDB.Get([]string{"x/value"})
			if err != nil {
				return err
			}
			fmt.Println(renderLiteral(revs["x/value"].Value))
			return nil
		},
	}
}

func renderLiteral(l literal.Literal) string {
	data, err := idl.Serialize(expr.Lit(l))
	if err != nil {
		return fmt.Sprintf("%v", l)
	}
	return string(data)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "caustic",
		Short: "caustic transactional expression language runtime",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialGlobal()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	rootCmd.AddCommand(
		newRunCommand(),
		newDemoCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error("caustic: command failed", zap.Error(err))
		os.Exit(1)
	}
}
