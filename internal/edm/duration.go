package edm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// parseISODuration parses the day-time subset of xs:duration: [-]P[nD][T[nH][nM][n[.f]S]]
func parseISODuration(s string) (time.Duration, error) {
	orig := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	for s != "" {
		if s[0] == 'T' {
			if inTime || len(s) == 1 {
				return 0, fmt.Errorf("invalid duration %q", orig)
			}
			inTime = true
			s = s[1:]
			continue
		}

		i := 0
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, fmt.Errorf("invalid duration %q", orig)
		}
		whole, frac, hasFrac := strings.Cut(s[:i], ".")
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
		}

		var unit time.Duration
		switch designator := s[i]; {
		case designator == 'D' && !inTime:
			unit = 24 * time.Hour
		case designator == 'H' && inTime:
			unit = time.Hour
		case designator == 'M' && inTime:
			unit = time.Minute
		case designator == 'S' && inTime:
			unit = time.Second
		default:
			// years and months have no fixed length
			return 0, fmt.Errorf("invalid duration %q: unsupported designator %q", orig, designator)
		}
		if n > math.MaxInt64/int64(unit) {
			return 0, fmt.Errorf("duration %q out of range", orig)
		}
		total += time.Duration(n) * unit

		if hasFrac {
			if unit != time.Second || frac == "" {
				return 0, fmt.Errorf("invalid duration %q: fractions are only allowed on seconds", orig)
			}
			if len(frac) > 9 {
				frac = frac[:9]
			}
			ns, err := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
			}
			total += time.Duration(ns)
		}
		s = s[i+1:]
	}

	if neg {
		total = -total
	}
	return total, nil
}

// formatISODuration writes d as [-]P[nD][T[nH][nM][n[.f]S]], "PT0S" for zero
func formatISODuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if d == 0 {
		return b.String()
	}

	b.WriteByte('T')
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	if hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dM", minutes)
	}
	if d > 0 {
		b.WriteString(formatSeconds(d))
		b.WriteByte('S')
	}
	return b.String()
}

// formatSeconds renders d (< 1 minute) as seconds with trimmed fraction
func formatSeconds(d time.Duration) string {
	secs := d / time.Second
	frac := d % time.Second
	if frac == 0 {
		return strconv.FormatInt(int64(secs), 10)
	}
	f := strings.TrimRight(fmt.Sprintf("%09d", int64(frac)), "0")
	return strconv.FormatInt(int64(secs), 10) + "." + f
}

// parseTimeOfDay parses hh:mm[:ss[.fffffffff]]
func parseTimeOfDay(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 || len(parts[0]) != 2 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if len(parts) == 3 {
		sec, frac, _ := strings.Cut(parts[2], ".")
		sv, err := strconv.Atoi(sec)
		if err != nil || sv < 0 || sv > 59 || len(sec) != 2 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
		d += time.Duration(sv) * time.Second
		if frac != "" {
			if len(frac) > 9 {
				frac = frac[:9]
			}
			fv, err := strconv.Atoi(frac + strings.Repeat("0", 9-len(frac)))
			if err != nil || fv < 0 {
				return 0, fmt.Errorf("invalid fractional seconds in %q", s)
			}
			d += time.Duration(fv)
		}
	}
	return d, nil
}

// formatTimeOfDay writes d as hh:mm:ss[.f]; precision fixes the fraction digits when set
func formatTimeOfDay(d time.Duration, precision *int) (string, error) {
	if d < 0 || d >= 24*time.Hour {
		return "", fmt.Errorf("time of day %s out of range", d)
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	frac := int64(d % time.Second)

	out := fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	digits := fmt.Sprintf("%09d", frac)
	switch {
	case precision != nil && *precision > 0:
		p := *precision
		if p > 9 {
			p = 9
		}
		out += "." + digits[:p]
	case precision == nil && frac != 0:
		out += "." + strings.TrimRight(digits, "0")
	}
	return out, nil
}
