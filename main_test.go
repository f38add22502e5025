package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/tsvio"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const data = "k\tv\na\t1\nb\t2\na\t3\n"

// execute runs the command line args with the output sent to a temporary
// file, which is returned.
func execute(t *testing.T, args ...string) (string, error) {
	out := filepath.Join(t.TempDir(), "out.tsv")
	root := newRoot()
	root.SetArgs(append(args, "-o", out))
	_, err := root.ExecuteC()
	if err != nil {
		return "", err
	}
	b, rerr := os.ReadFile(out)
	require.NoError(t, rerr)
	return string(b), nil
}

func input(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func selectRun(config selectConfig, in string) (string, error) {
	buf := &bytes.Buffer{}
	w := tsvio.NewWriter(buf, false)
	config.Inputs = []string{"in"}
	config.Open = tsvio.StaticOpener(map[string]string{"in": in})
	err := selectFields(&config, w)
	w.Flush()
	return buf.String(), err
}

func TestSelect(t *testing.T) {
	assert := assert.New(t)
	in := "a\tb\tc\n1\t2\t3\n4\t5\t6\n"
	{
		out, err := selectRun(selectConfig{Header: true, Fields: "c,a,a"}, in)
		assert.Nil(err)
		assert.Equal("c\ta\ta\n3\t1\t1\n6\t4\t4\n", out)
	}
	{
		out, err := selectRun(selectConfig{Header: true, Exclude: "b"}, in)
		assert.Nil(err)
		assert.Equal("a\tc\n1\t3\n4\t6\n", out)
	}
	{
		out, err := selectRun(selectConfig{Fields: "3-1"}, "1\t2\t3\n")
		assert.Nil(err)
		assert.Equal("1\t2\t3\n", out)
	}
	{
		out, err := selectRun(selectConfig{Fields: "2"}, "1\t2\n\n3\t4\n\n")
		assert.Nil(err)
		assert.Equal("2\n4\n", out)
	}
	{
		_, err := selectRun(selectConfig{Fields: "2"}, "1\t2\n3\n")
		var mf *record.MissingFieldError
		assert.True(errors.As(err, &mf))
		assert.Equal(2, mf.Index)
		assert.Equal(1, mf.Width)
		assert.Contains(err.Error(), "line 2")
	}
	{
		_, err := selectRun(selectConfig{Fields: "a"}, in)
		assert.NotNil(err)
		_, err = selectRun(selectConfig{}, in)
		assert.NotNil(err)
		_, err = selectRun(selectConfig{Fields: "1", Exclude: "2"}, in)
		assert.NotNil(err)
	}
}

func TestOrderedFlags(t *testing.T) {
	assert := assert.New(t)
	var list []orderedArg
	cmd := &cobra.Command{Use: "x"}
	addOrdered(cmd, &list, "sum", "", false)
	addOrdered(cmd, &list, "mean", "", false)
	addOrdered(cmd, &list, "count", "", true)

	require.NoError(t, cmd.ParseFlags([]string{"--mean", "2", "--count", "--sum", "1,3", "--mean=4"}))
	assert.Equal([]orderedArg{
		{name: "mean", value: "2"},
		{name: "count", value: "true"},
		{name: "sum", value: "1,3"},
		{name: "mean", value: "4"},
	}, list)
}

func TestSummarizeCommand(t *testing.T) {
	assert := assert.New(t)
	path := input(t, "in.tsv", data)

	out, err := execute(t, "summarize", "-H", "-g", "k", "--sum", "v", "--count", path)
	assert.Nil(err)
	assert.Equal("k\tv_sum\tcount\na\t4\t2\nb\t2\t1\n", out)

	out, err = execute(t, "summarize", "-H", "--count", "--max", "v", path)
	assert.Nil(err)
	assert.Equal("count\tv_max\n3\t3\n", out)

	out, err = execute(t, "summarize", "-H", "-p", "0", "--mean", "v", path)
	assert.Nil(err)
	assert.Equal("v_mean\n2\n", out)

	dec := input(t, "dec.tsv", "v\n1\n2\n")
	out, err = execute(t, "summarize", "-H", "--float-precision", "0", "--mean", "v", dec)
	assert.Nil(err)
	assert.Equal("v_mean\n2\n", out)

	out, err = execute(t, "summarize", "-H", "--mean", "v", dec)
	assert.Nil(err)
	assert.Equal("v_mean\n1.5\n", out)

	_, err = execute(t, "summarize", "-H", path)
	assert.NotNil(err)
}

func TestFilterCommand(t *testing.T) {
	assert := assert.New(t)
	path := input(t, "in.tsv", data)

	out, err := execute(t, "filter", "-H", "--gt", "v:1", path)
	assert.Nil(err)
	assert.Equal("k\tv\nb\t2\na\t3\n", out)

	out, err = execute(t, "filter", "-H", "--invert", "--str-eq", "k:a", path)
	assert.Nil(err)
	assert.Equal("k\tv\nb\t2\n", out)

	out, err = execute(t, "filter", "-H", "--count", "--str-eq", "k:a", path)
	assert.Nil(err)
	assert.Equal("2\n", out)

	out, err = execute(t, "filter", "-H", "--print-awk", "--gt", "v:1", path)
	assert.Nil(err)
	assert.True(strings.Contains(out, "BEGIN"))
}

func TestJoinCommand(t *testing.T) {
	assert := assert.New(t)
	filt := input(t, "filter.tsv", "k\tx\na\tX\n")
	path := input(t, "in.tsv", data)

	out, err := execute(t, "join", "-H", "-f", filt, "-k", "k", "-a", "x", path)
	assert.Nil(err)
	assert.Equal("k\tv\tx\na\t1\tX\na\t3\tX\n", out)

	out, err = execute(t, "join", "-H", "-f", filt, "-k", "k", "-a", "x", "-w", "NA", path)
	assert.Nil(err)
	assert.Equal("k\tv\tx\na\t1\tX\nb\t2\tNA\na\t3\tX\n", out)

	out, err = execute(t, "join", "-H", "-f", filt, "-k", "k", "-e", path)
	assert.Nil(err)
	assert.Equal("k\tv\nb\t2\n", out)
}

func TestSampleCommand(t *testing.T) {
	assert := assert.New(t)
	path := input(t, "in.tsv", data)

	first, err := execute(t, "sample", "-H", "-s", "-n", "2", path)
	assert.Nil(err)
	second, err := execute(t, "sample", "-H", "-s", "-n", "2", path)
	assert.Nil(err)
	assert.Equal(first, second)
	assert.Equal(3, strings.Count(first, "\n"))

	_, err = execute(t, "sample", "-p", "2", path)
	assert.NotNil(err)
}

func TestWiderCommand(t *testing.T) {
	assert := assert.New(t)
	path := input(t, "in.tsv", "id\tkey\tval\n1\tA\t10\n1\tB\t20\n2\tA\t30\n")

	out, err := execute(t, "wider", "--names-from", "key", "--values-from", "val", "--fill", "0", path)
	assert.Nil(err)
	assert.Equal("id\tA\tB\n1\t10\t20\n2\t30\t0\n", out)
}

func TestSelectCommand(t *testing.T) {
	assert := assert.New(t)
	path := input(t, "in.csv", "k,v\na,1\n")

	out, err := execute(t, "select", "-H", "-d", ",", "-f", "v,k", path)
	assert.Nil(err)
	assert.Equal("v,k\n1,a\n", out)
}

func TestDelimiter(t *testing.T) {
	assert := assert.New(t)
	path := input(t, "in.tsv", data)
	for _, cmd := range []string{"filter", "join", "sample", "summarize", "wider", "select"} {
		_, err := execute(t, cmd, "-d", "ab", path)
		assert.NotNil(err, cmd)
		assert.Contains(err.Error(), "single byte", cmd)
	}
}
