// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command ciminspect is a read-only command-line browser over a CIM
// (WMI) repository directory, rebuilt on cobra subcommands in place of
// the teacher library's flag.FlagSet dispatch (spec §6 "process-level
// CLI", an external-collaborator surface left open-ended by the
// specification but given a concrete shape here).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ciminspect",
		Short: "Inspect a Windows CIM (WMI) repository directory",
		Long: `
╔═╗╦╔╦╗  ┬┌┐┌┌─┐┌─┐┌─┐┌─┐┌┬┐
║  ║║║║  ││││└─┐├─┘├┤ │   │
╚═╝╩╩ ╩  ┴┘└┘└─┘┴  └─┘└─┘ ┴

A read-only browser for the Windows CIM repository (INDEX.BTR,
OBJECTS.DATA, MAPPING1-3.MAP). Brought to you by Saferwall (c) 2018 MIT
`,
	}

	root.PersistentFlags().StringP("dir", "d", ".", "directory holding INDEX.BTR/OBJECTS.DATA/MAPPING*.MAP")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Dump namespaces, classes, or instances",
	}
	dump.AddCommand(newDumpNamespacesCmd())
	dump.AddCommand(newDumpClassesCmd())
	dump.AddCommand(newDumpInstancesCmd())

	root.AddCommand(dump)
	root.AddCommand(newQueryCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("You are using version 1.0.0")
			return nil
		},
	}
}
