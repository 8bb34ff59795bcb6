package migration

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// ChecksumVersion prefixes every checksum. Changing the algorithm requires a
// new version so existing markers stay comparable.
const ChecksumVersion = "v1"

// EmptyChecksum is recorded when there was nothing to migrate.
const EmptyChecksum = "0"

// Checksum is FNV-1a 64 over the sorted "id|updatedAt|addedAt|customOrder"
// lines (times in Unix milliseconds). It detects drift; it is not a MAC.
func Checksum(books []entities.Book) string {
	if len(books) == 0 {
		return EmptyChecksum
	}

	lines := make([]string, 0, len(books))
	for _, b := range books {
		order := "-"
		if b.CustomOrder != nil {
			order = strconv.Itoa(*b.CustomOrder)
		}
		lines = append(lines, fmt.Sprintf("%s|%d|%d|%s", b.ID, b.UpdatedAt.UnixMilli(), b.AddedAt.UnixMilli(), order))
	}
	sort.Strings(lines)

	h := fnv.New64a()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%s:%016x", ChecksumVersion, h.Sum64())
}
