package main

import (
	"github.com/dianpeng/tsvkit/agg"
	"github.com/dianpeng/tsvkit/awkgen"
	"github.com/dianpeng/tsvkit/filter"
	"github.com/dianpeng/tsvkit/join"
	"github.com/dianpeng/tsvkit/sample"
	"github.com/dianpeng/tsvkit/tsvio"
	"github.com/dianpeng/tsvkit/wider"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Represents the state used when processing a command.
type Action struct {
	cmd  *cobra.Command
	args []string
}

func newAction(cmd *cobra.Command, args []string) *Action {
	return &Action{cmd: cmd, args: args}
}

func (self *Action) getBool(name string) bool {
	result, _ := self.cmd.Flags().GetBool(name)
	return result
}

func (self *Action) getInt(name string) int {
	result, _ := self.cmd.Flags().GetInt(name)
	return result
}

func (self *Action) getUint64(name string) uint64 {
	result, _ := self.cmd.Flags().GetUint64(name)
	return result
}

func (self *Action) getFloat(name string) float64 {
	result, _ := self.cmd.Flags().GetFloat64(name)
	return result
}

func (self *Action) getString(name string) string {
	result, _ := self.cmd.Flags().GetString(name)
	return result
}

func (self *Action) changed(name string) bool {
	return self.cmd.Flags().Changed(name)
}

// delimiter returns the -d flag, which must be exactly one byte.
func (self *Action) delimiter() (byte, error) {
	d := self.getString("delimiter")
	if len(d) != 1 {
		return 0, errors.Errorf("delimiter must be a single byte, got %q", d)
	}
	return d[0], nil
}

// Run opens the output, hands it to fn and flushes it on every path.
func (self *Action) Run(fn func(w *tsvio.Writer) error) error {
	w, err := tsvio.Create(self.getString("outfile"), self.getBool("line-buffered"))
	if err != nil {
		return err
	}
	err = fn(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

func addIOFlags(cmd *cobra.Command, header bool) {
	if header {
		cmd.Flags().BoolP("header", "H", false, "treat the first line of each file as a header")
	}
	cmd.Flags().StringP("delimiter", "d", "\t", "field delimiter, a single byte")
	cmd.Flags().StringP("outfile", "o", "", "output file (default: stdout)")
	cmd.Flags().Bool("line-buffered", false, "flush output after every line")
}

func addCommands(root *cobra.Command) {
	// filter
	var tests []orderedArg
	cmd := &cobra.Command{
		Use:   "filter [file...]",
		Short: "Output records passing the given field tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(newAction(cmd, args), tests)
		}}
	addIOFlags(cmd, true)
	cmd.Flags().Bool("or", false, "a record passes when any test passes")
	cmd.Flags().Bool("invert", false, "invert the filter, output records failing the tests")
	cmd.Flags().BoolP("count", "c", false, "print only the number of matching records")
	cmd.Flags().String("label", "", "output every record with a pass/fail column named LABEL")
	cmd.Flags().String("label-values", "1:0", "PASS:FAIL values of the --label column")
	cmd.Flags().Bool("print-awk", false, "print an equivalent awk program instead of filtering")
	for _, f := range filter.Flags() {
		addOrdered(cmd, &tests, f.Name, f.Usage, false)
	}
	root.AddCommand(cmd)

	// join
	cmd = &cobra.Command{
		Use:   "join [file...]",
		Short: "Join records against the keys of a filter file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(newAction(cmd, args))
		}}
	addIOFlags(cmd, true)
	cmd.Flags().StringP("filter-file", "f", "", "file whose keys are joined against (required)")
	cmd.Flags().StringP("key-fields", "k", "0", "filter file key fields, 0 is the whole line")
	cmd.Flags().String("data-fields", "", "data key fields (default: --key-fields)")
	cmd.Flags().StringP("append-fields", "a", "", "filter file fields appended to matching records")
	cmd.Flags().StringP("write-all", "w", "", "output unmatched records too, filling appended fields with the value")
	cmd.Flags().BoolP("exclude", "e", false, "output records whose key is not in the filter file")
	cmd.Flags().StringP("prefix", "p", "", "prefix of appended header names")
	cmd.Flags().BoolP("allow-duplicate-keys", "z", false, "the last duplicate key of the filter file wins")
	cmd.Flags().BoolP("ignore-case", "i", false, "compare keys ignoring ASCII case")
	root.AddCommand(cmd)

	// sample
	cmd = &cobra.Command{
		Use:   "sample [file...]",
		Short: "Sample or shuffle records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(newAction(cmd, args))
		}}
	addIOFlags(cmd, true)
	cmd.Flags().Float64P("prob", "p", 0, "inclusion probability, 0.0 < prob <= 1.0")
	cmd.Flags().IntP("num", "n", 0, "maximum number of records to output")
	cmd.Flags().BoolP("replace", "r", false, "sample with replacement, requires --num")
	cmd.Flags().BoolP("inorder", "i", false, "output the sample in input order, requires --num")
	cmd.Flags().StringP("weight-field", "w", "", "field holding the record weight")
	cmd.Flags().StringP("key-fields", "k", "", "distinct sampling keyed on these fields, requires --prob")
	cmd.Flags().Bool("print-random", false, "prefix each record with its random value")
	cmd.Flags().String("random-value-header", "random_value", "header name of the random value column")
	cmd.Flags().BoolP("gen-random-inorder", "g", false, "output every record in order with a random value")
	cmd.Flags().Bool("compatibility-mode", false, "sample so the first k records do not depend on --num")
	cmd.Flags().BoolP("static-seed", "s", false, "use the same seed on every run")
	cmd.Flags().Uint64("seed-value", 0, "seed of the random generator, non-zero overrides --static-seed")
	root.AddCommand(cmd)

	// summarize
	var ops []orderedArg
	cmd = &cobra.Command{
		Use:   "summarize [file...]",
		Short: "Compute summary statistics, optionally grouped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(newAction(cmd, args), ops)
		}}
	addIOFlags(cmd, true)
	cmd.Flags().StringP("group-by", "g", "", "fields grouping the records")
	cmd.Flags().Bool("write-header", false, "write a header even without --header")
	cmd.Flags().IntP("float-precision", "p", agg.DefaultPrecision, "decimals of rendered floats")
	cmd.Flags().Uint64("seed-value", 0, "seed of --rand, 0 draws one")
	for _, op := range agg.Ops() {
		if op.Op == agg.OpCount {
			addOrdered(cmd, &ops, op.Name, op.Usage, true)
			continue
		}
		addOrdered(cmd, &ops, op.Name, "<field-list> "+op.Usage, false)
	}
	root.AddCommand(cmd)

	// wider
	cmd = &cobra.Command{
		Use:   "wider [file...]",
		Short: "Reshape long records into a wide table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWider(newAction(cmd, args))
		}}
	addIOFlags(cmd, false)
	cmd.Flags().String("names-from", "", "column holding the new column names (required)")
	cmd.Flags().String("values-from", "", "column holding the cell values")
	cmd.Flags().String("id-cols", "", "columns identifying a row (default: every other column)")
	cmd.Flags().String("fill", "", "value of absent cells")
	cmd.Flags().Bool("names-sort", false, "sort the new column names")
	cmd.Flags().String("op", "last", "cell aggregator: count, sum, mean, min, max, first, last, median or nunique")
	root.AddCommand(cmd)

	// select
	cmd = &cobra.Command{
		Use:   "select [file...]",
		Short: "Output the given fields, in the order given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(newAction(cmd, args))
		}}
	addIOFlags(cmd, true)
	cmd.Flags().StringP("fields", "f", "", "fields to output, in order, duplicates allowed")
	cmd.Flags().StringP("exclude", "e", "", "fields to drop")
	root.AddCommand(cmd)
}

func runFilter(a *Action, tests []orderedArg) error {
	delim, err := a.delimiter()
	if err != nil {
		return err
	}
	config := &filter.Config{
		Inputs: a.args,
		Header: a.getBool("header"),
		Delim:  delim,
		Or:     a.getBool("or"),
		Invert: a.getBool("invert"),
		Count:  a.getBool("count"),
		Label:  a.getString("label"),
	}
	for _, t := range tests {
		config.Specs = append(config.Specs, filter.Spec{Flag: t.name, Arg: t.value})
	}
	if a.changed("label-values") {
		if err := config.SetLabelValues(a.getString("label-values")); err != nil {
			return err
		}
	}

	if a.getBool("print-awk") {
		return a.Run(func(w *tsvio.Writer) error {
			return printAwk(config, w)
		})
	}
	return a.Run(func(w *tsvio.Writer) error {
		return filter.Run(config, w)
	})
}

func printAwk(config *filter.Config, w *tsvio.Writer) error {
	if err := config.Validate(); err != nil {
		return err
	}
	r := tsvio.NewReader(config.Inputs, tsvio.ReaderConfig{
		Header:     config.Header,
		Delim:      config.Delim,
		RejectCRLF: true,
	})
	defer r.Close()

	f, _, err := filter.Build(config, r)
	if err != nil {
		return err
	}
	code, err := awkgen.Generate(f, &awkgen.Config{
		Delim:     config.Delim,
		Header:    config.Header,
		Count:     config.Count,
		Label:     config.Label,
		LabelPass: config.LabelPass,
		LabelFail: config.LabelFail,
	})
	if err != nil {
		return err
	}
	_, err = w.WriteString(code)
	return err
}

func runJoin(a *Action) error {
	delim, err := a.delimiter()
	if err != nil {
		return err
	}
	config := &join.Config{
		FilterFile:   a.getString("filter-file"),
		Inputs:       a.args,
		Header:       a.getBool("header"),
		Delim:        delim,
		KeyFields:    a.getString("key-fields"),
		DataFields:   a.getString("data-fields"),
		AppendFields: a.getString("append-fields"),
		Exclude:      a.getBool("exclude"),
		Prefix:       a.getString("prefix"),
		AllowDupKeys: a.getBool("allow-duplicate-keys"),
		IgnoreCase:   a.getBool("ignore-case"),
	}
	if a.changed("write-all") {
		config.SetWriteAll(a.getString("write-all"))
	}
	return a.Run(func(w *tsvio.Writer) error {
		return join.Run(config, w)
	})
}

func runSample(a *Action) error {
	delim, err := a.delimiter()
	if err != nil {
		return err
	}
	config := &sample.Config{
		Inputs:            a.args,
		Header:            a.getBool("header"),
		Delim:             delim,
		Num:               a.getInt("num"),
		Replace:           a.getBool("replace"),
		Inorder:           a.getBool("inorder"),
		WeightField:       a.getString("weight-field"),
		KeyFields:         a.getString("key-fields"),
		PrintRandom:       a.getBool("print-random"),
		RandomValueHeader: a.getString("random-value-header"),
		GenRandomInorder:  a.getBool("gen-random-inorder"),
		CompatMode:        a.getBool("compatibility-mode"),
		StaticSeed:        a.getBool("static-seed"),
		SeedValue:         a.getUint64("seed-value"),
	}
	if a.changed("prob") {
		config.SetProb(a.getFloat("prob"))
	}
	return a.Run(func(w *tsvio.Writer) error {
		return sample.Run(config, w)
	})
}

func runSummarize(a *Action, ops []orderedArg) error {
	delim, err := a.delimiter()
	if err != nil {
		return err
	}
	config := &agg.Config{
		Inputs:      a.args,
		Header:      a.getBool("header"),
		Delim:       delim,
		GroupBy:     a.getString("group-by"),
		WriteHeader: a.getBool("write-header"),
		Seed:        a.getUint64("seed-value"),
	}
	if a.changed("float-precision") {
		config.SetPrecision(a.getInt("float-precision"))
	}
	for _, o := range ops {
		op, err := agg.ParseOp(o.name)
		if err != nil {
			return err
		}
		s := agg.Spec{Op: op}
		if op != agg.OpCount {
			s.Fields = o.value
		}
		config.Specs = append(config.Specs, s)
	}
	return a.Run(func(w *tsvio.Writer) error {
		return agg.Run(config, w)
	})
}

func runWider(a *Action) error {
	delim, err := a.delimiter()
	if err != nil {
		return err
	}
	config := &wider.Config{
		Inputs:     a.args,
		Delim:      delim,
		NamesFrom:  a.getString("names-from"),
		ValuesFrom: a.getString("values-from"),
		IDCols:     a.getString("id-cols"),
		Fill:       a.getString("fill"),
		NamesSort:  a.getBool("names-sort"),
		Op:         a.getString("op"),
	}
	return a.Run(func(w *tsvio.Writer) error {
		return wider.Run(config, w)
	})
}

func runSelect(a *Action) error {
	delim, err := a.delimiter()
	if err != nil {
		return err
	}
	config := &selectConfig{
		Inputs:  a.args,
		Header:  a.getBool("header"),
		Delim:   delim,
		Fields:  a.getString("fields"),
		Exclude: a.getString("exclude"),
	}
	return a.Run(func(w *tsvio.Writer) error {
		return selectFields(config, w)
	})
}
