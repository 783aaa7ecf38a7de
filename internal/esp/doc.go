// Package esp contains the email transports the dispatcher sends through.
//
// Every adapter implements sending.Sender for exactly one recipient per
// call. Provider rejections come back as a SendResult with Success false;
// local problems such as missing credentials come back as errors. The
// dispatcher treats both as a failed outcome.
package esp
