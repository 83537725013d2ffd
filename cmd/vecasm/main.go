// vecasm - SIMD 宏汇编与指针压缩的命令行工具
package main

import "os"

func main() {
	os.Exit(execute(newGlobalState(), os.Args[1:]))
}
