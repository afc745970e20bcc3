package partition

import "hash/fnv"

// Count is the fixed number of logical partitions in the results table.
const Count = 256

// For returns the partition for results produced by the query source.
// The same source always maps to the same partition.
func For(source string) int {
	h := fnv.New32a()
	h.Write([]byte(source))
	return int(h.Sum32() % Count)
}
