package utils

import "github.com/google/uuid"

// UUIDv5 generates a deterministic UUID v5 from the given name using the URL
// namespace. The same name always yields the same UUID, so a VM keeps its
// cloud-init instance-id across seed rebuilds.
func UUIDv5(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
