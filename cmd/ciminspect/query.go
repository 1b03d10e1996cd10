// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	cimparse "github.com/saferwall/cimparse"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <object-path>",
		Short: "Resolve a WMI object path (namespace, class, or instance) and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cim, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			path, err := cimparse.ParseObjectPath(args[0], cim.Root())
			if err != nil {
				return err
			}

			ns := namespaceOrRoot(cim, path.Namespace)
			if path.Class == "" {
				fmt.Printf("namespace: %s\n", ns.Name())
				return nil
			}

			cl, err := ns.Class_(path.Class)
			if err != nil {
				return err
			}
			if len(path.Instance) == 0 {
				fmt.Printf("class: %s (super: %s)\n", cl.Name(), cl.SuperClassName())
				return nil
			}

			instances, _, err := cl.Instances()
			if err != nil {
				return err
			}
			for _, inst := range instances {
				if instanceMatchesKeys(inst, path.Instance) {
					key, err := inst.Key()
					if err != nil {
						return err
					}
					fmt.Printf("instance: %s:%s.%s\n", ns.Name(), cl.Name(), key)
					return nil
				}
			}
			return fmt.Errorf("ciminspect: no instance of %s matches the given keys", cl.Name())
		},
	}
	return cmd
}

func instanceMatchesKeys(inst *cimparse.Instance, keys map[string]string) bool {
	for name, want := range keys {
		p, err := inst.Class().Property(name)
		if err != nil {
			return false
		}
		v, err := inst.Value(p)
		if err != nil {
			return false
		}
		if fmt.Sprintf("%v", v) != want {
			return false
		}
	}
	return true
}
