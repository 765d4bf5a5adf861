package document

var (
	DefaultVersion = 1
)

func NewConsumer(version int) Consumer {
	switch version {
	case DefaultVersion:
		return newDocumentConsumer()
	default:
		return nil
	}
}
