package forecast

import (
	"context"
	"fmt"
	"math"
)

// Heuristic is the local fallback used when no advisory service is
// configured. It estimates days of cover from average daily consumption
// and recommends restocking to twice the minimum level.
type Heuristic struct{}

func (Heuristic) Forecast(_ context.Context, req Request) (Result, error) {
	avgDaily := averageDaily(req.SalesHistory)

	if avgDaily <= 0 {
		if req.CurrentStock < req.MinStock {
			qty := recommendQty(req.CurrentStock, req.MinStock)
			return Result{
				ReorderNeeded:  true,
				RecommendedQty: &qty,
				Reasoning:      fmt.Sprintf("%s está abaixo do estoque mínimo e não há histórico de vendas.", req.ItemName),
			}, nil
		}
		return Result{
			Reasoning: fmt.Sprintf("Sem histórico de vendas para %s; estoque atual acima do mínimo.", req.ItemName),
		}, nil
	}

	daysLeft := int(math.Floor(float64(req.CurrentStock) / avgDaily))
	needed := req.CurrentStock < req.MinStock || daysLeft <= 2

	result := Result{
		ReorderNeeded:     needed,
		EstimatedDaysLeft: &daysLeft,
	}
	if needed {
		qty := recommendQty(req.CurrentStock, req.MinStock)
		result.RecommendedQty = &qty
		result.Reasoning = fmt.Sprintf("Consumo médio de %.1f %s/dia esgota %s em ~%d dia(s).", avgDaily, req.StockUnit, req.ItemName, daysLeft)
	} else {
		result.Reasoning = fmt.Sprintf("Estoque de %s cobre ~%d dia(s) no ritmo atual.", req.ItemName, daysLeft)
	}
	return result, nil
}

func averageDaily(history []int64) float64 {
	if len(history) == 0 {
		return 0
	}
	total := int64(0)
	for _, qty := range history {
		if qty < 0 {
			continue
		}
		total += qty
	}
	return float64(total) / float64(len(history))
}

func recommendQty(current int64, minStock int64) int64 {
	target := minStock * 2
	if target < 1 {
		target = 10
	}
	qty := target - current
	if qty < 1 {
		qty = 1
	}
	return qty
}
