package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tangzhangming/vecasm/internal/config"
)

type initCmd struct {
	gs    *globalState
	force bool
}

// run 在 --config 或 $VECASM_CONFIG 指定的位置（默认当前目录）写入默认配置
func (c *initCmd) run(_ *cobra.Command, _ []string) error {
	gs := c.gs
	path := gs.explicitConfigPath()
	if path == "" {
		path = config.ConfigFileName
	}
	exists, err := afero.Exists(gs.fs, path)
	if err != nil {
		return err
	}
	if exists && !c.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(gs.fs, path); err != nil {
		return err
	}
	_, err = fmt.Fprintf(gs.stdout, "created %s\n", path)
	return err
}

func getCmdInit(gs *globalState) *cobra.Command {
	c := &initCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default " + config.ConfigFileName,
		Args:  cobra.NoArgs,
		// 不加载现有配置，允许覆盖一个无效的文件
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE:              c.run,
	}
	cmd.Flags().BoolVarP(&c.force, "force", "f", false, "overwrite an existing file")
	return cmd
}
