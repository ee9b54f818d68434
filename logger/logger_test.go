package logger_test

import (
	"fmt"
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"

	"github.com/actornet/actornet/logger"
)

type TestOutlet struct {
	Record []logger.Entry
}

func (o *TestOutlet) WriteEntry(entry logger.Entry) error {
	o.Record = append(o.Record, entry)
	return nil
}

func NewTestOutlet() *TestOutlet {
	return &TestOutlet{make([]logger.Entry, 0)}
}

func TestLogger_Basic(t *testing.T) {

	outlet_arr := []logger.Outlet{
		NewTestOutlet(),
		NewTestOutlet(),
	}

	outlets := logger.NewOutlets()
	for _, o := range outlet_arr {
		outlets.Add(o, logger.Debug)
	}

	l := logger.NewLogger(outlets)

	l.Info("foobar")

	l.WithField("fieldname", "fieldval").Info("log with field")

	l.WithError(fmt.Errorf("fooerror")).Error("error")

	t.Log(pretty.Sprint(outlet_arr))

	for _, o := range outlet_arr {
		rec := o.(*TestOutlet).Record
		assert.Equal(t, 3, len(rec))
		assert.Equal(t, "foobar", rec[0].Message)
		assert.Equal(t, "fieldval", rec[1].Fields["fieldname"])
		assert.Equal(t, "fooerror", rec[2].Fields[logger.FieldError])
	}
}

func TestOutlets_MinLevel(t *testing.T) {
	warnOnly := NewTestOutlet()
	outlets := logger.NewOutlets()
	outlets.Add(warnOnly, logger.Warn)

	l := logger.NewLogger(outlets)
	l.Debug("quiet")
	l.Warn("loud")
	l.Error("louder")

	assert.Equal(t, 2, len(warnOnly.Record))
	assert.Equal(t, logger.Warn, warnOnly.Record[0].Level)
}
