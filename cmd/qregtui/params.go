package main

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// piExpr matches pi expressions: pi, 2pi, 2*pi, pi/2, 3*pi/4, -pi/2, 0.5pi.
var piExpr = regexp.MustCompile(`^(-?(?:\d+\.?\d*|\.\d+)?)\s*\*?\s*pi(?:\s*/\s*(\d+\.?\d*))?$`)

// parseAngle parses one angle: a plain float or a pi expression.
func parseAngle(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	m := piExpr.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	coeff := 1.0
	switch m[1] {
	case "", "+":
	case "-":
		coeff = -1
	default:
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		coeff = v
	}
	v := coeff * math.Pi
	if m[2] != "" {
		den, err := strconv.ParseFloat(m[2], 64)
		if err != nil || den == 0 {
			return 0, false
		}
		v /= den
	}
	return v, true
}

// splitAngles parses a comma-separated angle list. Any bad part yields nil.
func splitAngles(input string) []float64 {
	var out []float64
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, ok := parseAngle(part)
		if !ok {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// formatAngle renders an angle back in pi notation when it is a small pi
// fraction, decimal otherwise.
func formatAngle(v float64) string {
	r := v / math.Pi
	for den := 1; den <= 8; den++ {
		num := math.Round(r * float64(den))
		if num != 0 && math.Abs(r*float64(den)-num) < 1e-9 {
			return piFraction(int(num), den)
		}
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func piFraction(num, den int) string {
	for g := 2; g <= den; g++ {
		for num%g == 0 && den%g == 0 {
			num /= g
			den /= g
		}
	}
	var sb strings.Builder
	if num < 0 {
		sb.WriteByte('-')
		num = -num
	}
	if num != 1 {
		sb.WriteString(strconv.Itoa(num))
		sb.WriteByte('*')
	}
	sb.WriteString("pi")
	if den != 1 {
		sb.WriteByte('/')
		sb.WriteString(strconv.Itoa(den))
	}
	return sb.String()
}

func formatAngles(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = formatAngle(v)
	}
	return strings.Join(parts, ", ")
}
