// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	pinsCmd.Flags().BoolVarP(&pinsOpts.Numeric, "numeric", "n", false, "list pin numbers only")
	pinsCmd.SetHelpTemplate(pinsCmd.HelpTemplate() + extendedPinsHelp)
	rootCmd.AddCommand(pinsCmd)
}

var extendedPinsHelp = `
Pins are identified by name, e.g. GPIOX_3, or by number.

If no pins are specified then all pins are listed.
`

var pinsCmd = &cobra.Command{
	Use:   "pins [pin]...",
	Short: "List the m8b GPIO pins",
	Long:  `List the names and numbers of the m8b GPIO pins.`,
	RunE:  pins,
}

var pinsOpts = struct {
	Numeric bool
}{}

func pins(cmd *cobra.Command, args []string) error {
	oo, err := parseOffsets(args)
	if err != nil {
		return err
	}
	if len(oo) == 0 {
		for o := 0; o < catalog.Len(); o++ {
			oo = append(oo, o)
		}
	}
	for _, o := range oo {
		if pinsOpts.Numeric {
			fmt.Println(o)
			continue
		}
		fmt.Printf("%3d %s\n", o, catalog.Name(o))
	}
	return nil
}
