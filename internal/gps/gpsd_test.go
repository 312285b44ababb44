package gps

import (
	"bufio"
	"io"
	"strings"
	"testing"
)

func TestParseGPSDReport(t *testing.T) {
	rep, err := parseGPSDReport([]byte(`{"class":"DEVICES","devices":[{"class":"DEVICE","path":"/dev/ttyACM0","driver":"u-blox"}]}`))
	if err != nil {
		t.Fatalf("parseGPSDReport err: %v", err)
	}
	if rep.class != "DEVICES" || rep.device != "/dev/ttyACM0" {
		t.Fatalf("report=%+v", rep)
	}

	rep, err = parseGPSDReport([]byte(`{"class":"ERROR","message":"unrecognized request"}`))
	if err != nil {
		t.Fatalf("parseGPSDReport err: %v", err)
	}
	if rep.err != "unrecognized request" {
		t.Fatalf("report=%+v", rep)
	}

	if _, err := parseGPSDReport([]byte(`{not json`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGPSDReader_DropsJSONKeepsSentences(t *testing.T) {
	in := strings.Join([]string{
		`{"class":"VERSION","release":"3.25","proto_major":3,"proto_minor":15}`,
		`{"class":"DEVICES","devices":[{"path":"/dev/ttyUSB1"}]}`,
		`{"class":"WATCH","enable":true,"nmea":true}`,
		"$GPGSV,1,1,00*79",
		"$GNGGA,092750.000,5321.680200,N,00630.300000,W,1,08,1.03,61.7,M,55.2,M,,*76",
	}, "\r\n") + "\r\n"

	var reports []gpsdReport
	r := newGPSDReader(io.NopCloser(strings.NewReader(in)), func(rep gpsdReport) {
		reports = append(reports, rep)
	})

	var got []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		got = append(got, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan err: %v", err)
	}
	if len(got) != 2 || !strings.HasPrefix(got[0], "$GPGSV") || !strings.HasPrefix(got[1], "$GNGGA") {
		t.Fatalf("got=%q", got)
	}
	if len(reports) != 3 || reports[1].device != "/dev/ttyUSB1" {
		t.Fatalf("reports=%+v", reports)
	}
}

func TestGPSDReader_PassesOverlongLine(t *testing.T) {
	long := strings.Repeat("A", 5000)
	r := newGPSDReader(io.NopCloser(strings.NewReader(long+"\n")), nil)
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll err: %v", err)
	}
	if string(b) != long+"\n" {
		t.Fatalf("len=%d want %d", len(b), len(long)+1)
	}
}
