package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "test_agent"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	discoveredSuites = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "discovered_suites",
		Help:      "Number of suites discovered in the last discovery run",
	}, []string{
		"repo_id",
		"run_id",
	})

	discoveredTests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "discovered_tests",
		Help:      "Number of tests discovered in the last discovery run",
	}, []string{
		"repo_id",
		"run_id",
	})

	executionResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "execution_results",
		Help:      "Result of test executions",
	}, []string{
		"repo_id",
		"run_id",
		"result",
	})

	executionTestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "execution_test_total",
		Help:      "Total number of test results across all passes",
	}, []string{
		"repo_id",
		"run_id",
	})

	executionTestPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "execution_test_passed",
		Help:      "Number of passed tests",
	}, []string{
		"repo_id",
		"run_id",
	})

	executionTestFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "execution_test_failed",
		Help:      "Number of failed tests",
	}, []string{
		"repo_id",
		"run_id",
	})

	executionTestBlocklisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "execution_test_blocklisted",
		Help:      "Number of blocklisted tests and suites",
	}, []string{
		"repo_id",
		"run_id",
	})

	executionDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "execution_duration",
		Help:      "Duration of test executions in seconds",
	}, []string{
		"repo_id",
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordDiscovery records the size of a discovery run
func RecordDiscovery(repoID string, runID string, suites int, tests int) {
	if Debug {
		log.Debug("metric set",
			"m", "discovered",
			"repo_id", repoID,
			"run_id", runID,
			"suites", suites,
			"tests", tests)
	}
	discoveredSuites.WithLabelValues(repoID, runID).Set(float64(suites))
	discoveredTests.WithLabelValues(repoID, runID).Set(float64(tests))
}

// RecordExecution records the aggregated outcome of an execution run
func RecordExecution(
	repoID string,
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	blocklisted int,
	duration time.Duration,
) {
	executionResults.WithLabelValues(repoID, runID, result).Set(1)
	executionTestTotal.WithLabelValues(repoID, runID).Add(float64(total))
	executionTestPassed.WithLabelValues(repoID, runID).Add(float64(passed))
	executionTestFailed.WithLabelValues(repoID, runID).Add(float64(failed))
	executionTestBlocklisted.WithLabelValues(repoID, runID).Add(float64(blocklisted))
	executionDuration.WithLabelValues(repoID, runID).Set(duration.Seconds())
}
