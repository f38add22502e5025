package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// orderedArg is one occurrence of a repeatable flag.
type orderedArg struct {
	name  string
	value string
}

// orderedFlag is a pflag.Value appending every occurrence to a list shared by
// a family of flags, so the relative order of different flag names on the
// command line survives parsing.
type orderedFlag struct {
	name string
	list *[]orderedArg
}

var _ pflag.Value = (*orderedFlag)(nil)

func (self *orderedFlag) String() string { return "" }

func (self *orderedFlag) Set(v string) error {
	*self.list = append(*self.list, orderedArg{name: self.name, value: v})
	return nil
}

func (self *orderedFlag) Type() string { return "field-list" }

// addOrdered registers name on cmd as an ordered flag collected into list.
// A flag that takes no argument, like --count, is given bare.
func addOrdered(
	cmd *cobra.Command,
	list *[]orderedArg,
	name string,
	usage string,
	bare bool,
) {
	f := cmd.Flags().VarPF(&orderedFlag{name: name, list: list}, name, "", usage)
	if bare {
		f.NoOptDefVal = "true"
	}
}
