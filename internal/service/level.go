package service

// LevelFor 由总积分查升级阈值表得出等级
// thresholds 升序，下标 0 对应等级 1；取满足 total >= thresholds[i] 的最大 i，
// 返回 i+1。低于首个阈值返回 1，超过末位阈值返回表长（封顶等级）。
func LevelFor(totalPoints int, thresholds []int) int {
	if len(thresholds) == 0 {
		return 1
	}

	level := 1
	for i, threshold := range thresholds {
		if totalPoints >= threshold {
			level = i + 1
		} else {
			break
		}
	}
	return level
}
