package output

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"diffraxia-go/internal/types"
)

// PatternHeader is the column header written above every pattern table.
const PatternHeader = "2theta_deg\tIntensity_sum"

// EncodePattern writes p as a two column text table: a "# " prefixed header line,
// then one "%.18e %.18e" row per bin.
func EncodePattern(w io.Writer, p types.Pattern) error {
	if len(p.TwoTheta) != len(p.Intensity) {
		return fmt.Errorf("pattern columns differ in length: %d vs %d", len(p.TwoTheta), len(p.Intensity))
	}
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "# %s\n", PatternHeader); err != nil {
		return err
	}
	for i, x := range p.TwoTheta {
		bw.WriteString(formatE(x))
		bw.WriteByte(' ')
		bw.WriteString(formatE(p.Intensity[i]))
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WritePattern writes p to path, replacing any existing file.
func WritePattern(path string, p types.Pattern) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodePattern(f, p); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func formatE(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'e', 18, 64)
}
