package smt

// ExtractVars 提取公式中出现的叶子变量名
// 深度优先遍历表达式树,字面值(数值/布尔常量)跳过,重复出现保留
func ExtractVars(t Term) []string {
	if t == nil {
		return nil
	}
	kids := t.Children()
	if len(kids) == 0 {
		if t.IsValue() {
			return nil
		}
		return []string{t.String()}
	}
	var res []string
	for _, k := range kids {
		res = append(res, ExtractVars(k)...)
	}
	return res
}
