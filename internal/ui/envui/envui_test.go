package envui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/tiecoon/b7/internal/brute"
)

func TestUpdateLogsOutlierAsLeader(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.Out = &buf
	logger.SetFormatter(&logrus.JSONFormatter{})

	o := New(logger)
	o.Update([]brute.Result{
		{ID: 1, Measurement: 100},
		{ID: 2, Measurement: 105},
		{ID: 3, Measurement: 9000},
	}, 100)

	require.Contains(t, buf.String(), `"leader_id":3`)
	require.Contains(t, buf.String(), `"round complete"`)
}

func TestDoneLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.Out = &buf

	o := New(logger)
	o.Done()

	require.Equal(t, 1, strings.Count(buf.String(), "solve complete"))
}

func TestWaitNeverBlocks(t *testing.T) {
	o := New(nil)
	done := make(chan struct{})
	go func() {
		o.Wait()
		close(done)
	}()
	<-done
}
