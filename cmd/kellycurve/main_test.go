package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelly-curve-lab/internal/distribution"
	"kelly-curve-lab/internal/domain"
)

const testConfig = `
log:
  level: error
grid:
  points: 801
  lower: -1
  upper: 1
convolution:
  max_days: 30
curve:
  utilizations: 10
  max_utilization: 0.9
  workers: 2
batch:
  workers: 2
`

var firstDay = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

// writeFixtures writes a config, a 401-day BTC price table and returns
// their paths.
func writeFixtures(t *testing.T) (dir, cfgPath, pricesPath string) {
	t.Helper()
	dir = t.TempDir()

	cfgPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o644))

	truth, err := distribution.NewSkewedT(distribution.Params{Loc: 0.0005, Scale: 0.02, Skew: 0.95, DoF: 4})
	require.NoError(t, err)
	returns := truth.Sample(rand.New(rand.NewPCG(3, 4)), 400)

	var sb strings.Builder
	sb.WriteString("date,BTC\n")
	price := 100.0
	fmt.Fprintf(&sb, "%s,%g\n", firstDay.Format("2006-01-02"), price)
	for i, r := range returns {
		price *= math.Exp(r)
		fmt.Fprintf(&sb, "%s,%g\n", firstDay.AddDate(0, 0, i+1).Format("2006-01-02"), price)
	}
	pricesPath = filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(pricesPath, []byte(sb.String()), 0o644))
	return dir, cfgPath, pricesPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerate(t *testing.T) {
	dir, cfgPath, pricesPath := writeFixtures(t)

	requests := "asset,label,start,end,strike,expiration_days,current_price,type\n" +
		"BTC,train,2022-01-01,2023-02-05,1.1,5,100,call\n" +
		"BTC,train,2022-01-01,2023-02-05,0.9,5,100,put\n" +
		"ETH,train,2022-01-01,2023-02-05,1.1,5,100,call\n"
	reqPath := filepath.Join(dir, "requests.csv")
	require.NoError(t, os.WriteFile(reqPath, []byte(requests), 0o644))
	outDir := filepath.Join(dir, "out")

	stdout, err := execute(t, "generate", "--config", cfgPath, "--requests", reqPath, "--prices", pricesPath, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Generated 2/3 curves")
	assert.Contains(t, stdout, "failed (insufficient_prices): 1")

	report, err := os.ReadFile(filepath.Join(outDir, reportFile))
	require.NoError(t, err)
	assert.Contains(t, string(report), "# Kelly Curve Report")
	assert.Contains(t, string(report), "## Failed Requests")

	data, err := os.ReadFile(filepath.Join(outDir, curvesJSON))
	require.NoError(t, err)
	var records []domain.CurveRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, domain.OptionCall, records[0].Type)
	assert.Equal(t, domain.OptionPut, records[1].Type)
	assert.Len(t, records[0].Premiums, 10)

	for _, name := range []string{curvesCSV, pointsCSV} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
}

func TestGenerate_FailOnError(t *testing.T) {
	dir, cfgPath, pricesPath := writeFixtures(t)

	requests := "asset,label,start,end,strike,expiration_days,current_price\n" +
		"ETH,train,2022-01-01,2023-02-05,1.1,5,100\n"
	reqPath := filepath.Join(dir, "requests.csv")
	require.NoError(t, os.WriteFile(reqPath, []byte(requests), 0o644))

	_, err := execute(t, "generate", "--config", cfgPath, "--requests", reqPath,
		"--prices", pricesPath, "--out", filepath.Join(dir, "out"), "--fail-on-error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 requests failed")
}

func TestFit(t *testing.T) {
	_, cfgPath, pricesPath := writeFixtures(t)

	stdout, err := execute(t, "fit", "--config", cfgPath, "--prices", pricesPath, "--asset", "BTC")
	require.NoError(t, err)

	var fit domain.DistributionFit
	require.NoError(t, json.Unmarshal([]byte(stdout), &fit))
	assert.Equal(t, domain.CenterSkewedT, fit.Center)
	assert.Equal(t, 400, fit.SampleCount)
	assert.Greater(t, fit.Scale, 0.0)
}

func TestPDF(t *testing.T) {
	_, cfgPath, pricesPath := writeFixtures(t)

	stdout, err := execute(t, "pdf", "--config", cfgPath, "--prices", pricesPath,
		"--asset", "BTC", "--day", "3", "--price", "100")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 802)
	assert.Equal(t, "price,density", lines[0])
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("grid:\n  points: 1\n"), 0o644))

	_, err := execute(t, "fit", "--config", cfgPath, "--asset", "BTC")
	require.Error(t, err)
}

func TestCov(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o644))

	rng := rand.New(rand.NewPCG(21, 22))
	var sb strings.Builder
	sb.WriteString("date,BTC,ETH\n")
	btc, eth := 100.0, 10.0
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&sb, "%s,%g,%g\n", firstDay.AddDate(0, 0, i).Format("2006-01-02"), btc, eth)
		z1, z2 := rng.NormFloat64(), rng.NormFloat64()
		btc *= math.Exp(0.02 * z1)
		eth *= math.Exp(0.03 * (0.8*z1 + 0.6*z2))
	}
	pricesPath := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(pricesPath, []byte(sb.String()), 0o644))

	stdout, err := execute(t, "cov", "--config", cfgPath, "--prices", pricesPath, "--assets", "BTC,ETH")
	require.NoError(t, err)

	var out covOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, []string{"BTC", "ETH"}, out.Assets)
	assert.Equal(t, 299, out.Observations)
	require.Len(t, out.Correlation, 2)
	assert.InDelta(t, 1.0, out.Correlation[0][0], 1e-9)
	assert.InDelta(t, 0.8, out.Correlation[0][1], 0.15)
	assert.InDelta(t, out.Correlation[0][1], out.Correlation[1][0], 1e-9)
}
