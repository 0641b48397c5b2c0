package export

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/shopscan/internal/model"
)

// PrimaryColumns is the header of the analysis output.
var PrimaryColumns = []string{
	"ShopID",
	"AccountName",
	"BillingCity",
	"BillingZip",
	"Website",
	"HasWebsite",
	"DirectOrdering",
	"Note",
}

// MessageColumns is the header of the messages output.
var MessageColumns = []string{
	"ShopID",
	"EmailSubject",
	"EmailBody",
	"SmsBody",
}

// PrimaryRow maps a record to a primary output row.
func PrimaryRow(rec *model.ShopRecord) []string {
	return []string{
		rec.ShopID,
		rec.AccountName,
		rec.BillingCity,
		rec.BillingZip,
		rec.Website,
		rec.HasWebsite.Column(),
		string(rec.DirectOrdering),
		rec.Note,
	}
}

// MessageRow maps an outreach message to a messages output row.
func MessageRow(msg model.OutreachMessage) []string {
	return []string{msg.ShopID, msg.EmailSubject, msg.EmailBody, msg.SmsBody}
}

// Writer fans records out to the primary sink and, when configured, the
// messages sink.
type Writer struct {
	primary  RowSink
	messages RowSink
}

// NewWriter wraps existing sinks. messages may be nil.
func NewWriter(primary, messages RowSink) *Writer {
	return &Writer{primary: primary, messages: messages}
}

// Open creates the output files. An empty messagesPath disables the
// messages output.
func Open(primaryPath, messagesPath string) (*Writer, error) {
	primary, err := Create(primaryPath, PrimaryColumns)
	if err != nil {
		return nil, err
	}
	w := &Writer{primary: primary}
	if messagesPath != "" {
		w.messages, err = Create(messagesPath, MessageColumns)
		if err != nil {
			_ = primary.Close()
			return nil, err
		}
	}
	return w, nil
}

// WantsMessages reports whether a messages sink is attached.
func (w *Writer) WantsMessages() bool {
	return w.messages != nil
}

// Write emits one record and, if both msg and a messages sink are present,
// its message.
func (w *Writer) Write(rec *model.ShopRecord, msg *model.OutreachMessage) error {
	if err := w.primary.Write(PrimaryRow(rec)); err != nil {
		return eris.Wrapf(err, "export: record %s", rec.ShopID)
	}
	if w.messages != nil && msg != nil {
		if err := w.messages.Write(MessageRow(*msg)); err != nil {
			return eris.Wrapf(err, "export: message %s", rec.ShopID)
		}
	}
	return nil
}

// Close closes every sink, returning the first error.
func (w *Writer) Close() error {
	err := w.primary.Close()
	if w.messages != nil {
		if merr := w.messages.Close(); err == nil {
			err = merr
		}
	}
	return err
}
