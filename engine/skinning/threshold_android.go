//go:build android

package skinning

const platformBatchThreshold = AndroidBatchThreshold
