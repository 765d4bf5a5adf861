package inmemorycache

const DefaultVersion = 1

func NewRepository(version int) Database {
	switch version {
	case DefaultVersion:
		return initFreeCache()
	default:
		return nil
	}
}
