package schedule

import "sort"

// NormalizeSlotIDs убирает дубликаты и сортирует идентификаторы слотов.
// Повторная отправка одного и того же набора после нормализации даёт
// идентичный вход для Reconcile.
func NormalizeSlotIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reconcile вычисляет минимальный changeset между текущим и запрошенным
// набором слотов пользователя:
//   - toAdd — есть в requested, но нет в current;
//   - toRemove — есть в current, но нет в requested.
//
// Совпадающие выборы не порождают записей: повтор одного и того же набора
// возвращает пустой changeset.
func Reconcile(current, requested []int64) (toAdd, toRemove []int64) {
	cur := make(map[int64]struct{}, len(current))
	for _, id := range current {
		cur[id] = struct{}{}
	}
	req := make(map[int64]struct{}, len(requested))
	for _, id := range requested {
		req[id] = struct{}{}
	}

	for _, id := range requested {
		if _, ok := cur[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range current {
		if _, ok := req[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}

	sort.Slice(toAdd, func(i, j int) bool { return toAdd[i] < toAdd[j] })
	sort.Slice(toRemove, func(i, j int) bool { return toRemove[i] < toRemove[j] })
	return toAdd, toRemove
}
