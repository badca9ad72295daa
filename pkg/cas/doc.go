// Package cas 统一身份认证（CAS 2.0）客户端：生成登录跳转地址，并通过
// /serviceValidate 校验 service ticket。
//
// ticket 被服务端拒绝不是错误：ValidateServiceTicket 返回 Success == false
// 的 Response。只有拿不到校验结论时（网络故障、非 200 响应、响应无法解析）
// 才返回错误，且都包装 ErrUnavailable。
package cas
