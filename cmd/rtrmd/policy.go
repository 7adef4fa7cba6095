package main

import (
	"github.com/edgefabric/rtrm/pkg/policy"
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect scheduling policies",
}

func init() {
	policyCmd.AddCommand(policyListCmd)
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the policies available to the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := policy.NewRegistry()
		if err := reg.Register(policy.NewFIFO()); err != nil {
			return err
		}
		for _, name := range reg.Names() {
			cmd.Println(name)
		}
		return nil
	},
}
