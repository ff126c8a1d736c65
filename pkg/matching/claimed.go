package matching

// ClaimedSet holds the registrations already assigned during one batch run.
// It is not safe for concurrent use; only the sequential claim pass touches it.
type ClaimedSet struct {
	ids map[string]struct{}
}

func NewClaimedSet() *ClaimedSet {
	return &ClaimedSet{ids: make(map[string]struct{})}
}

func (c *ClaimedSet) Claim(registrationID string) {
	c.ids[registrationID] = struct{}{}
}

func (c *ClaimedSet) Contains(registrationID string) bool {
	_, ok := c.ids[registrationID]
	return ok
}

func (c *ClaimedSet) Len() int {
	return len(c.ids)
}
