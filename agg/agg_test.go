package agg

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/sample"
	"github.com/dianpeng/tsvkit/tsvio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, input string, config Config) (string, error) {
	buf := &bytes.Buffer{}
	w := tsvio.NewWriter(buf, false)
	config.Inputs = []string{"in"}
	config.Open = tsvio.StaticOpener(map[string]string{"in": input})
	config.Seed = 1
	err := Run(&config, w)
	require.NoError(t, w.Flush())
	return buf.String(), err
}

func specs(pairs ...interface{}) []Spec {
	out := []Spec{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Spec{Op: pairs[i].(Op), Fields: pairs[i+1].(string)})
	}
	return out
}

// single runs every operation over one column of values.
func single(t *testing.T, op Op, values ...string) string {
	out, err := run(t, strings.Join(values, "\n")+"\n", Config{Specs: specs(op, "1")})
	require.NoError(t, err)
	return strings.TrimSuffix(out, "\n")
}

func TestGrouped(t *testing.T) {
	assert := assert.New(t)
	out, err := run(t, "color\tlen\nred\t1\nred\t3\nblue\t2\n", Config{
		Header:  true,
		GroupBy: "color",
		Specs:   specs(OpMean, "len", OpCount, ""),
	})
	assert.Nil(err)
	assert.Equal("color\tlen_mean\tcount\nblue\t2\t1\nred\t2\t2\n", out)
}

func TestSingletonGroup(t *testing.T) {
	assert := assert.New(t)
	out, err := run(t, "k\tv\na\t4.5\n", Config{
		Header:  true,
		GroupBy: "k",
		Specs: specs(
			OpSum, "v",
			OpMean, "v",
			OpVariance, "v",
			OpMin, "v",
			OpMax, "v",
			OpRange, "v",
		),
	})
	assert.Nil(err)
	assert.Equal("k\tv_sum\tv_mean\tv_var\tv_min\tv_max\tv_range\na\t4.5\t4.5\tnan\t4.5\t4.5\t0\n", out)
}

func TestNoGroup(t *testing.T) {
	assert := assert.New(t)
	{
		out, err := run(t, "1\t10\n2\t20\n3\tx\n", Config{
			Specs: specs(OpCount, "", OpSum, "1,2", OpMean, "2"),
		})
		assert.Nil(err)
		assert.Equal("3\t6\t30\t15\n", out)
	}
	{
		out, err := run(t, "1\t10\n", Config{
			WriteHeader: true,
			Specs:       specs(OpMax, "2", OpCount, ""),
		})
		assert.Nil(err)
		assert.Equal("field2_max\tcount\n10\t1\n", out)
	}
	{
		out, err := run(t, "", Config{Specs: specs(OpCount, "", OpSum, "1")})
		assert.Nil(err)
		assert.Equal("0\t0\n", out)
	}
}

func TestGroupOrder(t *testing.T) {
	assert := assert.New(t)
	out, err := run(t, "b\tx\t1\na\ty\t2\nb\tx\t3\na\tx\t4\n", Config{
		GroupBy: "1,2",
		Specs:   specs(OpSum, "3", OpCollapse, "3"),
	})
	assert.Nil(err)
	assert.Equal("a\tx\t4\t4\na\ty\t2\t2\nb\tx\t4\t1,3\n", out)
}

func TestNumeric(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("nan", single(t, OpMean, "x", ""))
	assert.Equal("2.5", single(t, OpMean, "1", " 2 ", "3", "4", "junk"))
	assert.Equal("1.666666666667", single(t, OpVariance, "1", "2", "3", "4"))
	assert.Equal("1.290994448736", single(t, OpStdev, "1", "2", "3", "4"))
	assert.Equal("0.516397779494", single(t, OpCV, "1", "2", "3", "4"))
	assert.Equal("-3", single(t, OpMin, "4", "-3", "2"))
	assert.Equal("7", single(t, OpRange, "4", "-3", "2"))
	assert.Equal("nan", single(t, OpMax, "a"))
	assert.Equal("4", single(t, OpGeoMean, "2", "8", "0", "-1"))
	assert.Equal("1.5", single(t, OpHarmMean, "1", "3", "0"))
	assert.Equal("0.3", single(t, OpSum, "0.1", "0.2"))
}

func TestQuantiles(t *testing.T) {
	assert := assert.New(t)
	values := []string{"5", "1", "3", "2", "4"}
	assert.Equal("3", single(t, OpMedian, values...))
	assert.Equal("2", single(t, OpQ1, values...))
	assert.Equal("4", single(t, OpQ3, values...))
	assert.Equal("2", single(t, OpIQR, values...))
	assert.Equal("1", single(t, OpMad, values...))
	assert.Equal("2.5", single(t, OpMedian, "1", "2", "3", "4"))
	assert.Equal("nan", single(t, OpMedian, "x"))

	assert.Equal(1.75, Quantile([]float64{1, 2, 3, 4}, 0.25))
	assert.True(math.IsNaN(Quantile(nil, 0.5)))
	assert.Equal(1.0, Mad([]float64{1, 1, 2, 2, 4, 6, 9}))
}

func TestStrings(t *testing.T) {
	assert := assert.New(t)
	values := []string{"b", "a", "b", "c", "a"}
	assert.Equal("b", single(t, OpFirst, values...))
	assert.Equal("a", single(t, OpLast, values...))
	assert.Equal("3", single(t, OpNUnique, values...))
	assert.Equal("a", single(t, OpMode, values...))
	assert.Equal("b,a,c", single(t, OpUnique, values...))
	assert.Equal("b,a,b,c,a", single(t, OpCollapse, values...))
	assert.Contains([]string{"a", "b", "c"}, single(t, OpRand, values...))
	assert.Equal("x", single(t, OpMode, "y", "x", "x", "y", "x"))
}

func TestMissingFields(t *testing.T) {
	assert := assert.New(t)
	out, err := run(t, "a\t1\nb\nc\t3\n", Config{
		Specs: specs(OpCount, "", OpFirst, "2", OpCollapse, "2", OpNUnique, "2"),
	})
	assert.Nil(err)
	assert.Equal("3\t1\t1,3\t2\n", out)
}

// NUnique never exceeds Count.
func TestNUniqueBound(t *testing.T) {
	assert := assert.New(t)
	b := strings.Builder{}
	for i := 0; i < 200; i++ {
		b.WriteString("g" + strconv.Itoa(i%7) + "\t" + strconv.Itoa(i%13) + "\n")
	}
	out, err := run(t, b.String(), Config{
		GroupBy: "1",
		Specs:   specs(OpCount, "", OpNUnique, "2"),
	})
	assert.Nil(err)
	for _, row := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		parts := strings.Split(row, "\t")
		count, _ := strconv.Atoi(parts[1])
		nunique, _ := strconv.Atoi(parts[2])
		assert.True(nunique <= count, row)
	}
}

// Operators reading the same field keep separate slots.
func TestIndependentSlots(t *testing.T) {
	assert := assert.New(t)
	schema := NewSchema([]Operation{
		{Op: OpMean, Field: 1},
		{Op: OpMean, Field: 1},
		{Op: OpStdev, Field: 1},
		{Op: OpMin, Field: 1},
		{Op: OpRange, Field: 1},
	}, sample.NewRNG(1))
	st := schema.NewState()
	sp := record.NewSplitter('\t')
	for _, v := range []string{"2", "4"} {
		sp.Split([]byte(v), 0)
		schema.Update(st, sp)
	}
	got := []string{}
	for i := range schema.Ops {
		got = append(got, string(schema.AppendResult(nil, st, i, DefaultPrecision)))
	}
	assert.Equal([]string{"3", "3", "1.414213562373", "2", "2"}, got)
	assert.Equal(2, st.Records)
}

func TestAppendNumber(t *testing.T) {
	assert := assert.New(t)
	cases := []struct {
		v    float64
		prec int
		want string
	}{
		{2, 12, "2"},
		{-0.0, 12, "0"},
		{0.5, 12, "0.5"},
		{1.0 / 3, 4, "0.3333"},
		{2.0 / 3, 2, "0.67"},
		{-1e-20, 12, "0"},
		{1e20, 12, "100000000000000000000"},
		{math.NaN(), 12, "nan"},
		{math.Inf(1), 12, "inf"},
		{math.Inf(-1), 12, "-inf"},
	}
	for _, c := range cases {
		assert.Equal(c.want, string(AppendNumber([]byte{}, c.v, c.prec)), "%v", c.v)
	}
	assert.Equal("x\t1.5", string(AppendNumber([]byte("x\t"), 1.5, 12)))
}

func TestOps(t *testing.T) {
	assert := assert.New(t)
	for _, info := range Ops() {
		op, err := ParseOp(info.Name)
		assert.Nil(err)
		assert.Equal(info.Op, op)
		assert.Equal(info.Name, op.Name())
	}
	_, err := ParseOp("bogus")
	assert.NotNil(err)
	assert.True(OpMean.Numeric())
	assert.False(OpMode.Numeric())
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)
	assert.NotNil((&Config{}).Validate())
	assert.NotNil((&Config{Specs: specs(OpSum, "")}).Validate())
	assert.NotNil((&Config{Specs: specs(OpCount, ""), Precision: -1}).Validate())

	c := Config{Specs: specs(OpCount, "")}
	assert.Nil(c.Validate())
	assert.Equal(DefaultPrecision, c.Precision)

	_, err := run(t, "a\n", Config{Specs: specs(OpSum, "name")})
	assert.NotNil(err)
}

func TestEmptyRecords(t *testing.T) {
	assert := assert.New(t)
	{
		out, err := run(t, "color\tlen\nred\t1\n\nblue\t2\n", Config{
			Header:  true,
			GroupBy: "color",
			Specs:   specs(OpCount, ""),
		})
		assert.Nil(err)
		assert.Equal("color\tcount\nblue\t1\nred\t1\n", out)
	}
	{
		out, err := run(t, "len\n1\n\n2\n\n", Config{
			Header: true,
			Specs:  specs(OpCount, "", OpSum, "len"),
		})
		assert.Nil(err)
		assert.Equal("count\tlen_sum\n2\t3\n", out)
	}
	{
		out, err := run(t, "", Config{Header: true, Specs: specs(OpMean, "x")})
		assert.Nil(err)
		assert.Equal("", out)
	}
}

func TestPrecision(t *testing.T) {
	assert := assert.New(t)
	{
		c := Config{Specs: specs(OpMean, "1")}
		c.SetPrecision(0)
		out, err := run(t, "1.25\n2.5\n", c)
		assert.Nil(err)
		assert.Equal("2\n", out)
	}
	{
		c := Config{Specs: specs(OpMean, "1")}
		c.SetPrecision(2)
		out, err := run(t, "1\n2\n2\n", c)
		assert.Nil(err)
		assert.Equal("1.67\n", out)
	}
	{
		out, err := run(t, "1\n2\n2\n", Config{Specs: specs(OpMean, "1")})
		assert.Nil(err)
		assert.Equal("1.666666666667\n", out)
	}
}
