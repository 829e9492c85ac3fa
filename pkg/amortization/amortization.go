package amortization

import (
	"errors"
	"math"
)

// ============================================================================
// 等额本息（EMI）计算
// ============================================================================
//
// 公式：
//   r   = 年利率 / (12 * 100)          月利率
//   emi = P * r * (1+r)^N / ((1+r)^N - 1)
//
// 舍入规则（全局统一）：
//   金额一律为 int64 最小货币单位；月供四舍五入到最小货币单位，
//   总还款额 = 取整后的月供 * 期数。
//   例：P=50000, R=12, N=12 -> emi=4442, total=53304
//
// ============================================================================

var ErrInvalidTerms = errors.New("贷款条款不合法：本金、利率、期数必须大于0")

// Terms 计算结果，条款一经落库即冻结
type Terms struct {
	EMIPerMonth  int64
	TotalPayback int64
}

// Calculate 纯函数：相同输入恒得相同输出，无副作用
func Calculate(principal int64, annualRate float64, durationMonths int) (Terms, error) {
	if principal <= 0 || annualRate <= 0 || durationMonths <= 0 {
		return Terms{}, ErrInvalidTerms
	}

	r := annualRate / (12 * 100)
	factor := math.Pow(1+r, float64(durationMonths))
	emi := float64(principal) * r * factor / (factor - 1)

	rounded := int64(math.Round(emi))
	return Terms{
		EMIPerMonth:  rounded,
		TotalPayback: rounded * int64(durationMonths),
	}, nil
}
