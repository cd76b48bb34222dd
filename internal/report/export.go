package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"chainq/internal/stats"
)

var csvHeader = []string{
	"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
	"threadName", "dataType", "success", "failureMessage", "bytes",
	"sentBytes", "grpThreads", "allThreads", "URL", "Latency", "IdleTime", "Connect",
}

// WriteCSV writes samples in JMeter's CSV layout.
// Schema: timeStamp,elapsed,label,responseCode,responseMessage,threadName,dataType,success,failureMessage,bytes,sentBytes,grpThreads,allThreads,URL,Latency,IdleTime,Connect
func WriteCSV(w io.Writer, samples []stats.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, s := range samples {
		// Interpolation failures never reached the wire
		code := ""
		if s.Code != 0 {
			code = strconv.Itoa(s.Code)
		}
		record := []string{
			strconv.FormatInt(s.Start.UnixMilli(), 10),
			strconv.FormatInt(s.Latency.Milliseconds(), 10),
			s.Name,
			code,
			responseMessage(s),
			s.Scenario + " " + s.UserID, // Thread Name
			"text",
			strconv.FormatBool(s.Status == stats.OK),
			s.Error,
			strconv.FormatInt(s.Bytes, 10),
			"0", // Sent bytes (not tracked)
			"0",
			"0",
			"",
			strconv.FormatInt(s.Latency.Milliseconds(), 10),
			"0",
			"0",
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func responseMessage(s stats.Sample) string {
	if s.Status == stats.Cancelled {
		return "Cancelled"
	}
	return http.StatusText(s.Code)
}

// ExportCSV writes the samples to filename.
func ExportCSV(samples []stats.Sample, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create samples file")
	}
	defer f.Close()

	if err := WriteCSV(f, samples); err != nil {
		return errors.Wrapf(err, "write %s", filename)
	}
	return f.Close()
}

// ExportJSON writes the summary to filename.
func ExportJSON(rep *Report, filename string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode summary")
	}
	return errors.Wrapf(os.WriteFile(filename, data, 0644), "write %s", filename)
}

// Export writes prefix.csv and prefix_summary.json and returns their names.
func Export(prefix string, samples []stats.Sample, rep *Report) ([]string, error) {
	csvName := prefix + ".csv"
	jsonName := fmt.Sprintf("%s_summary.json", prefix)
	if err := ExportCSV(samples, csvName); err != nil {
		return nil, err
	}
	if err := ExportJSON(rep, jsonName); err != nil {
		return nil, err
	}
	return []string{csvName, jsonName}, nil
}
