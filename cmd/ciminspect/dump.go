// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cimparse "github.com/saferwall/cimparse"
	"github.com/saferwall/cimparse/pkg/log"

	"go.uber.org/zap/zapcore"
)

func openSession(cmd *cobra.Command) (*cimparse.CIM, func(), error) {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return nil, nil, err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")

	var logger *log.Logger
	if verbose {
		logger, err = log.New(zapcore.DebugLevel)
		if err != nil {
			return nil, nil, err
		}
	}

	sess, err := cimparse.Open(dir, &cimparse.Options{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return sess.CIM, func() { sess.Close() }, nil
}

func newDumpNamespacesCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "namespaces",
		Short: "Dump the namespace tree starting at root",
		RunE: func(cmd *cobra.Command, args []string) error {
			cim, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			return walkNamespaces(cim.Root(), 0, recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "recurse into child namespaces")
	return cmd
}

func walkNamespaces(ns *cimparse.Namespace, depth int, recursive bool) error {
	fmt.Printf("%s%s\n", strings.Repeat("  ", depth), ns.Name())
	if !recursive {
		return nil
	}
	children, err := ns.Namespaces()
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := walkNamespaces(child, depth+1, recursive); err != nil {
			return err
		}
	}
	return nil
}

func newDumpClassesCmd() *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Dump every class visible from a namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cim, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ns := namespaceOrRoot(cim, namespace)
			classes, anomalies, err := ns.Classes()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "CLASS\tSUPERCLASS")
			for _, cl := range classes {
				fmt.Fprintf(w, "%s\t%s\n", cl.Name(), cl.SuperClassName())
			}
			if !anomalies.Empty() {
				fmt.Fprintf(os.Stderr, "warning: %v\n", anomalies.Err())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "root\\cimv2", "namespace to enumerate")
	return cmd
}

func newDumpInstancesCmd() *cobra.Command {
	var namespace, class string
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "Dump every instance of a class",
		RunE: func(cmd *cobra.Command, args []string) error {
			cim, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if class == "" {
				return fmt.Errorf("ciminspect: --class is required")
			}

			ns := namespaceOrRoot(cim, namespace)
			cl, err := ns.Class_(class)
			if err != nil {
				return err
			}
			instances, anomalies, err := cl.Instances()
			if err != nil {
				return err
			}
			if !anomalies.Empty() {
				fmt.Fprintf(os.Stderr, "warning: %v\n", anomalies.Err())
			}

			for _, inst := range instances {
				key, err := inst.Key()
				if err != nil {
					return err
				}
				fmt.Printf("%s:%s.%s\n", namespace, class, key)

				props, err := inst.Properties()
				if err != nil {
					return err
				}
				for _, p := range props {
					v, err := inst.Value(p)
					if err != nil {
						fmt.Printf("  %s = <error: %v>\n", p.Name(), err)
						continue
					}
					fmt.Printf("  %s = %v\n", p.Name(), v)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "root\\cimv2", "namespace the class lives in")
	cmd.Flags().StringVarP(&class, "class", "c", "", "class name")
	return cmd
}

func namespaceOrRoot(cim *cimparse.CIM, path string) *cimparse.Namespace {
	if path == "" || path == rootAlias {
		return cim.Root()
	}
	ns := cim.Root()
	for _, seg := range strings.Split(strings.TrimPrefix(path, rootAlias+"\\"), "\\") {
		if seg == "" || seg == rootAlias {
			continue
		}
		child, err := ns.Namespace(seg)
		if err != nil {
			return ns
		}
		ns = child
	}
	return ns
}

const rootAlias = "root"
