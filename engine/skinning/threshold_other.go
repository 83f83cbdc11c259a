//go:build !android

package skinning

const platformBatchThreshold = DefaultBatchThreshold
